package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/mediabot/internal/api/handler"
	mw "github.com/iconidentify/mediabot/internal/api/middleware"
)

// NewRouter creates the operational HTTP router.
func NewRouter(
	healthHandler *handler.HealthHandler,
	jobHandler *handler.JobHandler,
	eventHandler *handler.EventHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		r.Get("/jobs", jobHandler.List)
		r.Get("/jobs/{jobID}", jobHandler.Get)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/recent", eventHandler.Recent)
			r.Get("/stats", eventHandler.Stats)
		})
	})

	return r
}
