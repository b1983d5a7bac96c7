package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/metrics"
	"github.com/hitoshi/inkpost/internal/middleware"
)

// activatePathPrefix はアカウント有効化ルートの接頭辞。
const activatePathPrefix = "/activate/"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.UserResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Collector         metrics.MetricsCollector

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿
	PostService PostServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Auth → Logging → CSRF
//
// Authは認証情報があればユーザーをコンテキストに設定するだけで、拒否はしない。
// 認証必須のルートはRequireAuthのグループに配置する。
// アカウント有効化はメールのリンクから開かれるためCSRF検証の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	csrfConfig := deps.CSRFConfig
	csrfConfig.ExemptPathPrefixes = append([]string{activatePathPrefix}, deps.CSRFConfig.ExemptPathPrefixes...)

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewAuthMiddleware(deps.Resolver))
	r.Use(middleware.NewLoggingMiddleware(nil, deps.Collector))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Post("/register/", authHandler.Register)
	r.Get(activatePathPrefix+"{uid}/{token}/", authHandler.Activate)
	r.Post(activatePathPrefix+"{uid}/{token}/", authHandler.Activate)
	r.Post("/login/", authHandler.Login)
	r.Post("/logout/", authHandler.Logout)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		// 投稿
		r.Post("/create_post/", postHandler.CreatePost)
		r.Get("/post_list/", postHandler.ListPosts)
		r.Route("/post_detail/{id}", func(r chi.Router) {
			r.Get("/", postHandler.GetPost)
			r.Put("/", postHandler.UpdatePost)
			r.Patch("/", postHandler.UpdatePost)
			r.Delete("/", postHandler.DeletePost)
		})

		r.Route("/viewset", func(r chi.Router) {
			r.Get("/", postHandler.ResourceList)
			r.Post("/", postHandler.ResourceCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.ResourceRetrieve)
				r.Put("/", postHandler.ResourceUpdate)
				r.Patch("/", postHandler.ResourceUpdate)
				r.Delete("/", postHandler.ResourceDestroy)
			})
		})

		// ユーザー
		r.Get("/retrieve_user/", userHandler.Retrieve)
		r.Get("/retrieve_user/{id}/", userHandler.Retrieve)
		r.Put("/update_user/", userHandler.Update)
		r.Patch("/update_user/", userHandler.Update)
		r.Put("/update_user/{id}/", userHandler.Update)
		r.Patch("/update_user/{id}/", userHandler.Update)
		r.Delete("/delete_user/{id}/", userHandler.Delete)
	})

	return r
}
