package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID string, in post.Input) (*model.Post, error)
	List(ctx context.Context) ([]*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	Update(ctx context.Context, actorID, id string, patch post.Patch) (*model.Post, error)
	Delete(ctx context.Context, actorID, id string) error
}

// PostHandler は投稿のHTTPハンドラー。
// 旧来のエンドポイント（/create_post/ など）とリソース形式（/viewset/）の両方を提供する。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{
		service: service,
	}
}

// postResponse は投稿のJSONレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	res := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		res = append(res, toPostResponse(p))
	}
	return res
}

type postMessageResponse struct {
	Message string       `json:"message"`
	Post    postResponse `json:"post"`
}

// postDetailUpdateResponse はpost_detailの更新レスポンス。キーは先頭大文字の "Post"。
type postDetailUpdateResponse struct {
	Message string       `json:"message"`
	Post    postResponse `json:"Post"`
}

// CreatePost は投稿を作成する。作成者はリクエストのユーザー。
// POST /create_post/
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	p, ok := h.create(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, postMessageResponse{
		Message: "Post published successfully",
		Post:    toPostResponse(p),
	})
}

// ListPosts は全投稿を返す。
// GET /post_list/
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":    toPostResponses(posts),
		"message": "success",
	})
}

// GetPost は投稿を1件返す。キーは先頭大文字の "Data"。
// GET /post_detail/{id}/
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Data": toPostResponse(p)})
}

// UpdatePost は投稿を部分更新する。作成者本人のみ更新できる。
// PUT|PATCH /post_detail/{id}/
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	p, ok := h.update(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, postDetailUpdateResponse{
		Message: "Post updated successfully",
		Post:    toPostResponse(p),
	})
}

// DeletePost は投稿を削除する。作成者本人のみ削除できる。
// DELETE /post_detail/{id}/
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.delete(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "The post was deleted",
		"object_deleted": id,
	})
}

// --- /viewset/ ---

// ResourceList は全投稿を配列で返す。
// GET /viewset/
func (h *PostHandler) ResourceList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// ResourceCreate は投稿を作成し、作成した投稿を返す。
// POST /viewset/
func (h *PostHandler) ResourceCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.create(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// ResourceRetrieve は投稿を1件返す。
// GET /viewset/{id}/
func (h *PostHandler) ResourceRetrieve(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// ResourceUpdate は投稿を部分更新し、更新後の投稿を返す。
// PUT|PATCH /viewset/{id}/
func (h *PostHandler) ResourceUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.update(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// ResourceDestroy は投稿を削除する。
// DELETE /viewset/{id}/
func (h *PostHandler) ResourceDestroy(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.delete(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) create(w http.ResponseWriter, r *http.Request) (*model.Post, bool) {
	user := requireUser(w, r)
	if user == nil {
		return nil, false
	}

	var in post.Input
	if !decodeJSON(w, r, &in) {
		return nil, false
	}

	p, err := h.service.Create(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return p, true
}

func (h *PostHandler) update(w http.ResponseWriter, r *http.Request) (*model.Post, bool) {
	user := requireUser(w, r)
	if user == nil {
		return nil, false
	}

	// authorなど未知のフィールドは無視する
	var patch post.Patch
	if !decodeJSON(w, r, &patch) {
		return nil, false
	}

	p, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return p, true
}

func (h *PostHandler) delete(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := requireUser(w, r)
	if user == nil {
		return "", false
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return id, true
}
