// Package activation はメールアドレス確認用トークンの発行と消費を提供する。
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// DefaultTTL はトークンの有効期間の既定値。
const DefaultTTL = 24 * time.Hour

var (
	// ErrTokenNotFound はトークンまたはユーザーが存在しない場合に返す。
	ErrTokenNotFound = errors.New("activation token not found")
	// ErrTokenExpired はトークンの有効期限切れ、またはユーザーが確認済みの場合に返す。
	ErrTokenExpired = errors.New("activation token expired")
)

// Store は確認トークンを管理する。
type Store struct {
	tokens repository.ActivationTokenRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStore はStoreを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewStore(tokens repository.ActivationTokenRepository, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// TTL はトークンの有効期間を返す。
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーに新しいトークンを発行する。既存のトークンは無効化しない。
func (s *Store) Issue(ctx context.Context, user *model.User) (*model.ActivationToken, error) {
	token := &model.ActivationToken{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to issue activation token: %w", err)
	}
	return token, nil
}

// ValidateAndConsume はトークンを検証し、有効であればユーザーを確認済みにしてトークンを削除する。
// 検証と更新は同一トランザクションで行われ、同じトークンで2回成功することはない。
//
//   - トークンやユーザーIDがUUID形式でない、トークンが存在しない、ユーザーが存在しない: ErrTokenNotFound
//   - 発行から有効期間以上経過している、ユーザーが確認済み: ErrTokenExpired
func (s *Store) ValidateAndConsume(ctx context.Context, userID, token string) error {
	parsedToken, err := uuid.Parse(token)
	if err != nil {
		return ErrTokenNotFound
	}
	parsedUser, err := uuid.Parse(userID)
	if err != nil {
		return ErrTokenNotFound
	}

	return s.tokens.Consume(ctx, parsedUser.String(), parsedToken.String(),
		func(tok *model.ActivationToken, user *model.User) error {
			if tok == nil || user == nil {
				return ErrTokenNotFound
			}
			if user.IsEmailVerified {
				return ErrTokenExpired
			}
			if s.now().Sub(tok.CreatedAt) >= s.ttl {
				return ErrTokenExpired
			}
			return nil
		})
}
