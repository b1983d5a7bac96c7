// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/auth"
	"github.com/hitoshi/inkpost/internal/credential"
	"github.com/hitoshi/inkpost/internal/middleware"
	"github.com/hitoshi/inkpost/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in credential.RegisterInput, baseURL string) (*model.User, error)
	Activate(ctx context.Context, encodedUserID, token string) error
	Login(ctx context.Context, currentUserID, username, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, currentUserID, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・有効化・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type statusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// Register はユーザー登録を処理する。
// POST /register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credential.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.service.Register(r.Context(), req, h.config.BaseURL); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, statusResponse{
		Status:  "success",
		Message: "User registered successfully. Check your email for activation.",
	})
}

// Activate は確認リンクを処理する。
// GET|POST /activate/{uid}/{token}/
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")

	if err := h.service.Activate(r.Context(), uid, token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Account activated successfully.",
	})
}

// Login はユーザー名とパスワードでログインする。
// セッションCookieを設定し、レスポンスボディでトークンを返す。
// POST /login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// ログイン済みの判定はボディの形式より優先する
	currentUserID, _ := middleware.UserIDFromContext(r.Context())

	var req loginRequest
	if currentUserID == "" && !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), currentUserID, req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    result.Session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Login successful.",
		Token:   result.Token.Key,
	})
}

// Logout はセッションを破棄し、トークンを失効させる。
// 認証情報がなくても成功を返す。
// POST /logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	currentUserID, _ := middleware.UserIDFromContext(r.Context())

	var sessionID string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	if err := h.service.Logout(r.Context(), currentUserID, sessionID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Logout successful.",
	})
}
