package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/inkpost/internal/database"
	"github.com/hitoshi/inkpost/internal/model"
)

// PostgresAuthTokenRepo はPostgreSQLを使用した認証トークンリポジトリ。
type PostgresAuthTokenRepo struct {
	db *sql.DB
}

// NewPostgresAuthTokenRepo はPostgresAuthTokenRepoを生成する。
func NewPostgresAuthTokenRepo(db *sql.DB) *PostgresAuthTokenRepo {
	return &PostgresAuthTokenRepo{db: db}
}

// GetOrCreate はユーザーの既存トークンを返す。存在しない場合はtokenを保存して返す。
// user_idの一意制約とON CONFLICT DO NOTHINGで同時ログインを1件に収束させる。
func (r *PostgresAuthTokenRepo) GetOrCreate(ctx context.Context, token *model.AuthToken) (*model.AuthToken, error) {
	var stored *model.AuthToken
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx database.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO auth_tokens (key, user_id, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id) DO NOTHING`,
			token.Key, token.UserID, token.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert auth token: %w", err)
		}

		t := &model.AuthToken{}
		if err := tx.QueryRowContext(ctx,
			`SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`,
			token.UserID,
		).Scan(&t.Key, &t.UserID, &t.CreatedAt); err != nil {
			return fmt.Errorf("failed to read auth token: %w", err)
		}
		stored = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByKey はキーでトークンを検索する。見つからない場合はnilを返す。
func (r *PostgresAuthTokenRepo) FindByKey(ctx context.Context, key string) (*model.AuthToken, error) {
	t := &model.AuthToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`,
		key,
	).Scan(&t.Key, &t.UserID, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth token: %w", err)
	}
	return t, nil
}

// DeleteByUserID はユーザーのトークンを削除する。
func (r *PostgresAuthTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete auth token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AuthTokenRepository = (*PostgresAuthTokenRepo)(nil)
