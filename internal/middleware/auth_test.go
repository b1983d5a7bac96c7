package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/inkpost/internal/auth"
	"github.com/hitoshi/inkpost/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	currentUserFn func(ctx context.Context, creds auth.Credentials) (*auth.Principal, error)
	calls         int
}

func (m *mockResolver) CurrentUser(ctx context.Context, creds auth.Credentials) (*auth.Principal, error) {
	m.calls++
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, creds)
	}
	return nil, nil
}

// compile-time interface check
var _ UserResolver = (*mockResolver)(nil)

// tokenOrSessionResolver は "good-token" と "good-session" のみ解決する。
func tokenOrSessionResolver() *mockResolver {
	return &mockResolver{
		currentUserFn: func(_ context.Context, creds auth.Credentials) (*auth.Principal, error) {
			if creds.TokenKey == "good-token" {
				return &auth.Principal{User: &model.User{ID: "user-token"}, Method: auth.AuthMethodToken}, nil
			}
			if creds.SessionID == "good-session" {
				return &auth.Principal{User: &model.User{ID: "user-session"}, Method: auth.AuthMethodSession}, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestCredentialsFromRequest(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		cookie      string
		wantToken   string
		wantSession string
	}{
		{"token scheme", "Token abc", "", "abc", ""},
		{"bearer scheme", "Bearer abc", "", "abc", ""},
		{"case insensitive scheme", "bearer abc", "", "abc", ""},
		{"unknown scheme", "Basic dXNlcjpwYXNz", "", "", ""},
		{"missing key", "Token", "", "", ""},
		{"cookie only", "", "sess-1", "", "sess-1"},
		{"both", "Token abc", "sess-1", "abc", "sess-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}

			got := CredentialsFromRequest(req)
			if got.TokenKey != tt.wantToken {
				t.Errorf("TokenKey = %q, want %q", got.TokenKey, tt.wantToken)
			}
			if got.SessionID != tt.wantSession {
				t.Errorf("SessionID = %q, want %q", got.SessionID, tt.wantSession)
			}
		})
	}
}

func TestAuthMiddleware_ValidToken_InjectsPrincipal(t *testing.T) {
	mw := NewAuthMiddleware(tokenOrSessionResolver())

	var captured *auth.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/retrieve_user/", nil)
	req.Header.Set("Authorization", "Token good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if captured == nil || captured.User.ID != "user-token" || captured.Method != auth.AuthMethodToken {
		t.Fatalf("principal = %+v", captured)
	}
	userID, err := UserIDFromContext(req.Context())
	if err == nil || userID != "" {
		t.Error("original request context should not be modified")
	}
}

func TestAuthMiddleware_ValidSession_InjectsPrincipal(t *testing.T) {
	mw := NewAuthMiddleware(tokenOrSessionResolver())

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
	}))

	req := httptest.NewRequest(http.MethodGet, "/retrieve_user/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-session"})

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if capturedUserID != "user-session" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-session")
	}
}

// 解決できない認証情報は匿名として扱う
func TestAuthMiddleware_UnknownCredentials_Anonymous(t *testing.T) {
	mw := NewAuthMiddleware(tokenOrSessionResolver())

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if PrincipalFromContext(r.Context()) != nil {
			t.Error("principal should be nil")
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/login/", nil)
	req.Header.Set("Authorization", "Token revoked")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Error("handler should have been called")
	}
}

func TestAuthMiddleware_NoCredentials_SkipsResolver(t *testing.T) {
	resolver := tokenOrSessionResolver()
	handler := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/post_list/", nil))

	if resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestAuthMiddleware_ResolverError_Returns500(t *testing.T) {
	resolver := &mockResolver{
		currentUserFn: func(context.Context, auth.Credentials) (*auth.Principal, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/post_list/", nil)
	req.Header.Set("Authorization", "Token any")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestRequireAuth_Anonymous_Returns401(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/post_list/", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

func TestRequireAuth_Authenticated_PassesThrough(t *testing.T) {
	handlerCalled := false
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), sessionRequest(http.MethodGet, "/post_list/"))

	if !handlerCalled {
		t.Error("handler should have been called")
	}
}
