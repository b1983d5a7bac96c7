// Package credential はユーザーの登録とパスワード認証を提供する。
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// Store はユーザーの資格情報を管理する。
type Store struct {
	users  repository.UserRepository
	cost   int
	logger *slog.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewStore はStoreを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使用する。
func NewStore(users repository.UserRepository, cost int, logger *slog.Logger) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		users:  users,
		cost:   cost,
		logger: logger,
		now:    time.Now,
	}
}

// Register は入力を検証してユーザーを作成する。
// 検証エラーとユーザー名・メールアドレスの重複はVALIDATION_FAILEDとしてまとめて返す。
// 作成されたユーザーは未確認状態となる。
func (s *Store) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = NormalizeEmail(in.Email)
	return s.create(ctx, in, false)
}

// RegisterStaff は確認済みの管理者ユーザーを作成する。createadminコマンド用。
func (s *Store) RegisterStaff(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = NormalizeEmail(in.Email)
	return s.create(ctx, in, true)
}

func (s *Store) create(ctx context.Context, in RegisterInput, staff bool) (*model.User, error) {
	// 1. 形式の検証
	fields := map[string]string{}
	if err := in.Validate(); err != nil {
		apiErr := ToAPIError(err)
		if apiErr == nil {
			return nil, fmt.Errorf("failed to validate registration: %w", err)
		}
		fields = apiErr.Fields
	}

	// 2. 重複の検証（形式エラーのないフィールドのみ）
	if _, bad := fields["username"]; !bad {
		existing, err := s.users.FindByUsername(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if existing != nil {
			fields["username"] = msgUsernameTaken
		}
	}
	if _, bad := fields["email"]; !bad {
		existing, err := s.users.FindByEmail(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			fields["email"] = msgEmailTaken
		}
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	// 3. パスワードのハッシュ化
	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	// 4. 永続化
	now := s.now().UTC()
	user := &model.User{
		ID:              uuid.New().String(),
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    hash,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		IsEmailVerified: staff,
		IsStaff:         staff,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok {
			return nil, duplicateError(constraint)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("staff", staff),
	)
	return user, nil
}

// duplicateError は検査と挿入の間に競合した一意制約違反をフィールドエラーに変換する。
func duplicateError(constraint string) *model.APIError {
	switch constraint {
	case repository.ConstraintUsersUsername:
		return model.NewValidationError(map[string]string{"username": msgUsernameTaken})
	case repository.ConstraintUsersEmail:
		return model.NewValidationError(map[string]string{"email": msgEmailTaken})
	default:
		return model.NewValidationError(map[string]string{"non_field_errors": "Duplicate value."})
	}
}

// Authenticate はユーザー名とパスワードを照合する。
// ユーザー不在とパスワード不一致はいずれもnil, nilを返し、呼び出し側で区別できない。
// ユーザー不在時もダミーハッシュとの比較を行い、応答時間を揃える。
func (s *Store) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	return user, nil
}

// MarkVerified はユーザーを確認済みにする。すでに確認済みでもエラーにしない。
// アカウント有効化はトークン消費と同一トランザクションで確認済みにする必要があるため、
// これを使わずactivation.Store.ValidateAndConsume（ActivationTokenRepository.Consume）が更新する。
// こちらはトランザクション外で単独に確認済みにする場合に使う。
func (s *Store) MarkVerified(ctx context.Context, userID string) error {
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func (s *Store) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	})
	return s.dummyHash
}
