// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーが投稿したブログ記事を表す。
// Contentはサニタイズ済みHTML。
type Post struct {
	ID        string
	Title     string
	Content   string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
