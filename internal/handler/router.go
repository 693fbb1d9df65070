package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/metrics"
	"github.com/hitoshi/eventorg/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// IDサービスとドキュメントストア
	Accounts  identity.Authenticator
	Documents docstore.Store
	Verifier  middleware.TokenVerifier

	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス。nilの場合は記録も/metricsも無効
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//
// アカウント作成とサインインはIP単位、それ以外の認証済みルートはユーザー単位でレート制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	accountHandler := NewAccountHandler(deps.Accounts)
	documentHandler := NewDocumentHandler(deps.Documents)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/accounts", accountHandler.Register)
			r.Post("/sessions", accountHandler.SignIn)
		})
		r.Delete("/sessions/current", accountHandler.SignOut)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Verifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/accounts/me", accountHandler.Me)
			r.Patch("/accounts/me", accountHandler.UpdateMe)

			r.Route("/collections/{collection}/documents", func(r chi.Router) {
				r.Get("/", documentHandler.Query)
				r.Post("/", documentHandler.Insert)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", documentHandler.Get)
					r.Patch("/", documentHandler.Replace)
					r.Delete("/", documentHandler.Delete)
				})
			})
		})
	})

	return r
}
