// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログを利用するユーザーを表す。
// PasswordHashはbcryptのハッシュ値で、平文パスワードは保持しない。
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	IsEmailVerified bool
	IsStaff         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActivationToken はメールアドレス確認用のワンタイムトークンを表す。
// 有効化に成功すると削除される。
type ActivationToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

// AuthToken はログイン時に発行されるBearerトークンを表す。
// ユーザーごとに最大1件。
type AuthToken struct {
	Key       string
	UserID    string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
