package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Retrieve(ctx context.Context, userID string) (*model.User, error)
	UpdateSelf(ctx context.Context, userID string, patch user.ProfilePatch) (*model.User, error)
	// Delete は管理者のみ実行できる。
	Delete(ctx context.Context, actor *model.User, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザーのJSONレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	IsEmailVerified bool   `json:"is_email_verified"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		IsEmailVerified: u.IsEmailVerified,
	}
}

// Retrieve はユーザー情報を返す。IDの指定がない場合はリクエストのユーザー自身を返す。
// GET /retrieve_user/ , GET /retrieve_user/{id}/
func (h *UserHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	current := requireUser(w, r)
	if current == nil {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusOK, toUserResponse(current))
		return
	}

	u, err := h.service.Retrieve(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Update はリクエストのユーザー自身のプロフィールを更新する。
// パスのIDは無視する。
// PUT|PATCH /update_user/ , PUT|PATCH /update_user/{id}/
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	current := requireUser(w, r)
	if current == nil {
		return
	}

	var patch user.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	u, err := h.service.UpdateSelf(r.Context(), current.ID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Delete はユーザーを削除する。管理者のみ実行できる。
// DELETE /delete_user/{id}/
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current := requireUser(w, r)
	if current == nil {
		return
	}

	if err := h.service.Delete(r.Context(), current, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
