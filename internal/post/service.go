// Package post は投稿のCRUDと作成者による操作制限を提供する。
package post

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
	"github.com/hitoshi/inkpost/internal/security"
)

const (
	msgRequired      = "This field is required."
	msgTitleTooLong  = "Ensure this field has no more than 255 characters."
	msgMayNotBeBlank = "This field may not be blank."

	msgUpdateForbidden = "You are not authorized to update this post"
	msgDeleteForbidden = "You are not authorized to delete this post"
)

// Input は投稿作成時の入力値。
type Input struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate は入力値を検証する。
func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title,
			validation.Required.Error(msgRequired),
			validation.RuneLength(1, 255).Error(msgTitleTooLong),
		),
		validation.Field(&in.Content, validation.Required.Error(msgRequired)),
	)
}

// Patch は投稿の部分更新の入力値。nilのフィールドは変更しない。
// 作成者は更新できないため含まない。
type Patch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Validate は指定されたフィールドのみ検証する。
func (p Patch) Validate() error {
	var fields []*validation.FieldRules
	if p.Title != nil {
		fields = append(fields, validation.Field(&p.Title,
			validation.Required.Error(msgMayNotBeBlank),
			validation.RuneLength(1, 255).Error(msgTitleTooLong),
		))
	}
	if p.Content != nil {
		fields = append(fields, validation.Field(&p.Content, validation.Required.Error(msgMayNotBeBlank)))
	}
	return validation.ValidateStruct(&p, fields...)
}

// Owns はactorIDのユーザーが投稿の作成者かどうかを返す。
// 投稿を変更する操作はすべてこの判定を通す。
func Owns(actorID string, p *model.Post) bool {
	return p != nil && actorID != "" && p.AuthorID == actorID
}

// Service は投稿のサービス層。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PostRepository, sanitizer security.ContentSanitizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Create は投稿を作成する。本文はサニタイズしてから検証する。
func (s *Service) Create(ctx context.Context, authorID string, in Input) (*model.Post, error) {
	in.Content = s.sanitizer.Sanitize(in.Content)
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Post{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Content:   in.Content,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	s.logger.Info("post created",
		slog.String("post_id", p.ID),
		slog.String("user_id", authorID),
	)
	return p, nil
}

// List は全投稿を作成日時順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Get は指定IDの投稿を返す。UUID形式でないIDは存在しない投稿として扱う。
func (s *Service) Get(ctx context.Context, id string) (*model.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewPostNotFoundError()
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError()
	}
	return p, nil
}

// Update は作成者のみ投稿を部分更新できる。
func (s *Service) Update(ctx context.Context, actorID, id string, patch Patch) (*model.Post, error) {
	// 1. 存在確認と作成者の確認
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Owns(actorID, p) {
		return nil, model.NewForbiddenError(msgUpdateForbidden)
	}

	// 2. 検証
	if patch.Content != nil {
		sanitized := s.sanitizer.Sanitize(*patch.Content)
		patch.Content = &sanitized
	}
	if err := validationError(patch.Validate()); err != nil {
		return nil, err
	}

	// 3. 更新
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError()
		}
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete は作成者のみ投稿を削除できる。
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !Owns(actorID, p) {
		return model.NewForbiddenError(msgDeleteForbidden)
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPostNotFoundError()
		}
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	s.logger.Info("post deleted",
		slog.String("post_id", id),
		slog.String("user_id", actorID),
	)
	return nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr := credential.ToAPIError(err); apiErr != nil {
		return apiErr
	}
	return err
}
