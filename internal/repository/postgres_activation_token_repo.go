package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/inkpost/internal/database"
	"github.com/hitoshi/inkpost/internal/model"
)

// PostgresActivationTokenRepo はPostgreSQLを使用した確認トークンリポジトリ。
type PostgresActivationTokenRepo struct {
	db *sql.DB
}

// NewPostgresActivationTokenRepo はPostgresActivationTokenRepoを生成する。
func NewPostgresActivationTokenRepo(db *sql.DB) *PostgresActivationTokenRepo {
	return &PostgresActivationTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresActivationTokenRepo) Create(ctx context.Context, token *model.ActivationToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activation_tokens (token, user_id, created_at) VALUES ($1, $2, $3)`,
		token.Token, token.UserID, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activation token: %w", err)
	}
	return nil
}

// Consume はユーザー行とトークン行をFOR UPDATEでロックしてfnに渡す。
// fnがnilを返した場合、ユーザーを確認済みにしてトークンを削除し、コミットする。
// fnのエラーはそのまま返し、トランザクションはロールバックされる。
func (r *PostgresActivationTokenRepo) Consume(ctx context.Context, userID, token string, fn ConsumeFunc) error {
	return database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx database.DBTX) error {
		// 1. ユーザー行をロック
		user, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		// 2. トークン行をロック（ユーザー不在ならスキップ）
		var tok *model.ActivationToken
		if user != nil {
			t := &model.ActivationToken{}
			err = tx.QueryRowContext(ctx,
				`SELECT token, user_id, created_at FROM activation_tokens
				 WHERE token = $1 AND user_id = $2 FOR UPDATE`,
				token, userID,
			).Scan(&t.Token, &t.UserID, &t.CreatedAt)
			switch {
			case err == sql.ErrNoRows:
			case err != nil:
				return fmt.Errorf("failed to lock activation token: %w", err)
			default:
				tok = t
			}
		}

		// 3. 呼び出し側で有効性を判定
		if err := fn(tok, user); err != nil {
			return err
		}

		// 4. 確認済みに更新してトークンを消費
		if err := markVerified(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM activation_tokens WHERE token = $1`, token,
		); err != nil {
			return fmt.Errorf("failed to delete activation token: %w", err)
		}
		return nil
	})
}

// compile-time interface check
var _ ActivationTokenRepository = (*PostgresActivationTokenRepo)(nil)
