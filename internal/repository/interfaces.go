// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/inkpost/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返す。
// 参照系のFindXXXはこのエラーを返さず、nilを返す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// 一意制約違反は*pq.Errorをラップして返すため、UniqueViolationで判定できる。
	Create(ctx context.Context, user *model.User) error

	// MarkVerified はメールアドレス確認済みフラグを立てる。すでに確認済みでもエラーにしない。
	MarkVerified(ctx context.Context, id string) error

	// UpdateProfile は氏名とパスワードハッシュを更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するトークン、セッション、投稿はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// ConsumeFunc はConsume中にロック済みの行を検査する関数。
// トークンまたはユーザーが存在しない場合はnilが渡される。
// nilを返した場合のみ確認済みフラグの更新とトークン削除が行われる。
type ConsumeFunc func(token *model.ActivationToken, user *model.User) error

// ActivationTokenRepository はメールアドレス確認トークンの永続化インターフェース。
type ActivationTokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.ActivationToken) error

	// Consume はユーザー行とトークン行をロックしてfnで検査し、
	// 成功時はユーザーを確認済みにしてトークンを削除する。すべて同一トランザクションで行う。
	Consume(ctx context.Context, userID, token string, fn ConsumeFunc) error
}

// AuthTokenRepository は認証トークンの永続化インターフェース。
type AuthTokenRepository interface {
	// GetOrCreate はユーザーの既存トークンを返す。存在しない場合はtokenを保存して返す。
	// 同時実行されても1ユーザー1件に収束する。
	GetOrCreate(ctx context.Context, token *model.AuthToken) (*model.AuthToken, error)

	// FindByKey はキーでトークンを検索する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.AuthToken, error)

	// DeleteByUserID はユーザーのトークンを削除する。存在しなくてもエラーにしない。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// List は全投稿を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Post, error)

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Update はタイトルと本文を更新する。
	Update(ctx context.Context, post *model.Post) error

	// DeleteByID は指定IDの投稿を削除する。
	DeleteByID(ctx context.Context, id string) error
}
