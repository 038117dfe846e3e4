package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/middleware"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

// RouterConfig collects what the registry router needs.
type RouterConfig struct {
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	Snapshot metrics.Snapshotter

	Users  *UserHandler
	Crates *CrateHandler
	Tokens *TokenHandler
	Health *HealthHandler

	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig

	CORSAllowedOrigins []string
	MaxBodySize        int64
	IsDevelopment      bool
}

// NewRouter builds the registry API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(telemetry.Tracer("http")))
	r.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", NewMetricsHandler(cfg.Snapshot).Metrics)

	authenticate := middleware.Auth(cfg.Auth)
	perUser := middleware.RateLimitUser(cfg.RateLimit)
	perIP := middleware.RateLimitIP(cfg.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		// Anonymous
		r.Group(func(r chi.Router) {
			r.Use(perIP)
			r.Get("/crates", cfg.Crates.List)
			r.Get("/users/{id}/stats", cfg.Users.Stats)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(perUser)

			r.Get("/me", cfg.Users.Me)
			r.Put("/users/{id}", cfg.Users.Update)
			r.Put("/users/{id}/resend", cfg.Users.Resend)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCookie)

				r.Get("/me/tokens", cfg.Tokens.List)
				r.Put("/me/tokens", cfg.Tokens.Create)
				r.Delete("/me/tokens/{id}", cfg.Tokens.Revoke)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/users/{id}/admin", cfg.Users.AdminGet)
					r.Put("/users/{id}/lock", cfg.Users.Lock)
					r.Delete("/users/{id}/lock", cfg.Users.Unlock)
				})
			})
		})
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
