// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/inkpost/internal/auth"
	"github.com/hitoshi/inkpost/internal/model"
)

// SessionCookieName はWebセッションIDを運ぶCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// UserResolver はリクエストの認証情報からユーザーを解決するインターフェース。
// auth.Serviceが実装する。
type UserResolver interface {
	CurrentUser(ctx context.Context, creds auth.Credentials) (*auth.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーとsession_id Cookieから
// 認証主体を解決し、リクエストコンテキストに注入するミドルウェアを返す。
// 解決できないリクエストは匿名として次のハンドラーに渡す。
func NewAuthMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 認証情報を取り出す
			creds := CredentialsFromRequest(r)
			if creds.TokenKey == "" && creds.SessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. ユーザーを解決
			principal, err := resolver.CurrentUser(r.Context(), creds)
			if err != nil {
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 3. 認証主体をコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth は認証済みでないリクエストに401を返すミドルウェア。
// NewAuthMiddlewareの内側で使用する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CredentialsFromRequest はリクエストから認証情報を取り出す。
// Authorizationヘッダーは "Token <key>" と "Bearer <key>" の両方を受け付ける。
func CredentialsFromRequest(r *http.Request) auth.Credentials {
	var creds auth.Credentials

	if header := r.Header.Get("Authorization"); header != "" {
		scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
		if ok && (strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			creds.TokenKey = strings.TrimSpace(key)
		}
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		creds.SessionID = cookie.Value
	}

	return creds
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。未認証の場合はnil。
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalContextKey).(*auth.Principal)
	return p
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) *model.User {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.User
	}
	return nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
