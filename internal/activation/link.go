package activation

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidLink はリンク中のユーザーIDを復号できない場合に返す。
var ErrInvalidLink = errors.New("invalid activation link")

// EncodeUserID はユーザーIDをURLセーフなbase64（パディングなし）に変換する。
func EncodeUserID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUserID はEncodeUserIDの逆変換を行う。
// パディング付きの入力も受け付ける。復号結果がUUIDでない場合はErrInvalidLinkを返す。
func DecodeUserID(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", ErrInvalidLink
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return "", ErrInvalidLink
	}
	return id.String(), nil
}

// BuildURL は確認リンクを組み立てる。
// 形式は <baseURL>/activate/<encodedUserID>/<token>/ 。
func BuildURL(baseURL, userID, token string) string {
	return strings.TrimRight(baseURL, "/") + "/activate/" + EncodeUserID(userID) + "/" + token + "/"
}
