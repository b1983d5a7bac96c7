// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 投稿本文はユーザー入力のHTMLであるため、保存前に許可リストベースの
// bluemondayポリシーでサニタイズする。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は投稿本文のサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// Sanitize はHTMLを許可リストに従って無害化する。
	// 同一入力に対して常に同一出力を返し、出力を再度渡しても変化しない。
	Sanitize(rawHTML string) string
}

// postSanitizer はContentSanitizerの実装。
// bluemonday.Policyは構築後の並行利用が安全。
type postSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は投稿本文用のサニタイザーを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, hr, h2-h4, ul, ol, li, blockquote, pre, code, strong, em, b, i, a, img
//   - script, iframe, style, h1 等は許可リスト外のため除去、on*属性とstyle属性も除去
//   - URLはhttpsのみ（javascript:, data:, http: は拒否）
//   - aタグ: target="_blank" と rel="nofollow noopener noreferrer" を付与
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	// 見出しはページタイトル(h1)と衝突しないようh2以下のみ
	p.AllowElements(
		"p", "br", "hr",
		"h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &postSanitizer{policy: p}
}

// Sanitize はHTMLを無害化して返す。
func (s *postSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
