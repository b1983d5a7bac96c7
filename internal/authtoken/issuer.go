// Package authtoken はログイン時に発行するBearerトークンを管理する。
// トークンはユーザーごとに最大1件で、ログアウトで失効する。
package authtoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// keyBytes はトークンの乱数バイト数。16進で40文字になる。
const keyBytes = 20

// Issuer はトークンの発行・失効・解決を行う。
type Issuer struct {
	tokens repository.AuthTokenRepository
	random io.Reader
	now    func() time.Time
}

// NewIssuer はIssuerを生成する。
func NewIssuer(tokens repository.AuthTokenRepository) *Issuer {
	return &Issuer{
		tokens: tokens,
		random: rand.Reader,
		now:    time.Now,
	}
}

// IssueOrGet はユーザーの既存トークンを返す。存在しなければ新しいキーを生成して保存する。
func (i *Issuer) IssueOrGet(ctx context.Context, userID string) (*model.AuthToken, error) {
	key, err := i.generateKey()
	if err != nil {
		return nil, err
	}

	token, err := i.tokens.GetOrCreate(ctx, &model.AuthToken{
		Key:       key,
		UserID:    userID,
		CreatedAt: i.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue auth token: %w", err)
	}
	return token, nil
}

// Revoke はユーザーのトークンを削除する。トークンがなければ何もしない。
func (i *Issuer) Revoke(ctx context.Context, userID string) error {
	if err := i.tokens.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke auth token: %w", err)
	}
	return nil
}

// Resolve はキーに対応するトークンを返す。見つからない場合はnilを返す。
func (i *Issuer) Resolve(ctx context.Context, key string) (*model.AuthToken, error) {
	if key == "" {
		return nil, nil
	}
	token, err := i.tokens.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve auth token: %w", err)
	}
	return token, nil
}

func (i *Issuer) generateKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := io.ReadFull(i.random, b); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
