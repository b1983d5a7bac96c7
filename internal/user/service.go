// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/hitoshi/inkpost/internal/credential"
	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

const (
	msgNameTooLong     = "Ensure this field has no more than 150 characters."
	msgDeleteForbidden = "You do not have permission to perform this action."
)

// PasswordHasher はパスワードハッシュ生成のインターフェース。
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// ProfilePatch はプロフィール更新の入力値。nilのフィールドは変更しない。
// ユーザー名・メールアドレス・確認状態・権限は更新できない。
type ProfilePatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

// Validate は指定されたフィールドのみ検証する。
func (p ProfilePatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.RuneLength(0, 150).Error(msgNameTooLong)),
		validation.Field(&p.LastName, validation.RuneLength(0, 150).Error(msgNameTooLong)),
	)

	fields := validation.Errors{}
	if err != nil {
		var errs validation.Errors
		if !errors.As(err, &errs) {
			return err
		}
		fields = errs
	}
	if p.Password != nil {
		if msg := credential.ValidatePassword(*p.Password); msg != "" {
			fields["password"] = errors.New(msg)
		}
	}
	return fields.Filter()
}

// Service はユーザー管理のサービス層。
// 参照・本人によるプロフィール更新・管理者による削除を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		now:         time.Now,
	}
}

// Retrieve は指定IDのユーザーを返す。
func (s *Service) Retrieve(ctx context.Context, userID string) (*model.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateSelf は本人のプロフィールを更新する。
// パスワードを変更した場合は既存のWebセッションをすべて破棄する。
func (s *Service) UpdateSelf(ctx context.Context, userID string, patch ProfilePatch) (*model.User, error) {
	if err := patch.Validate(); err != nil {
		if apiErr := credential.ToAPIError(err); apiErr != nil {
			return nil, apiErr
		}
		return nil, err
	}

	user, err := s.Retrieve(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 1. 変更内容を反映
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	passwordChanged := false
	if patch.Password != nil {
		hash, err := s.hasher.HashPassword(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		user.PasswordHash = hash
		passwordChanged = true
	}
	user.UpdatedAt = s.now().UTC()

	// 2. 保存
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	// 3. パスワード変更時はセッションを破棄
	if passwordChanged {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return nil, fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
		slog.Info("password changed, sessions revoked",
			slog.String("user_id", userID),
		)
	}

	return user, nil
}

// Delete は管理者がユーザーを削除する。
// 関連するトークン、セッション、投稿はCASCADE削除される。
func (s *Service) Delete(ctx context.Context, actor *model.User, userID string) error {
	if actor == nil || !actor.IsStaff {
		return model.NewForbiddenError(msgDeleteForbidden)
	}

	if _, err := s.Retrieve(ctx, userID); err != nil {
		return err
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("user deleted",
		slog.String("user_id", userID),
		slog.String("actor_id", actor.ID),
	)

	return nil
}
