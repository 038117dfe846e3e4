package console

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cargoyard/cargoyard/internal/handler"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/middleware"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

// NewRouter builds the console router. /metrics is mounted when recorder
// can also report a snapshot.
func NewRouter(c *Console, logger *slog.Logger, recorder metrics.Recorder) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(telemetry.Tracer("http")))
	r.Use(middleware.Logger(logger, recorder))
	r.Use(middleware.Recoverer(logger))

	r.Get("/healthz", c.Healthz)
	r.Get("/error", c.ErrorPage)
	r.Get("/resume", c.Resume)
	if snap, ok := recorder.(metrics.Snapshotter); ok {
		r.Get("/metrics", handler.NewMetricsHandler(snap).Metrics)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(c.requireAdmin)

		r.Get("/", c.Index)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", c.Profile)
			r.Get("/crates", c.Crates)
			r.Get("/stats", c.Stats)
			r.Post("/lock", c.Lock)
			r.Post("/unlock", c.Unlock)
			r.Post("/email", c.ChangeEmail)
			r.Post("/notifications", c.UpdateNotifications)
			r.Post("/resend", c.Resend)
		})
	})

	return r
}
