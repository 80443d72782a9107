package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpswagger "github.com/swaggo/http-swagger"

	"github.com/ndelia/wren/config"
	"github.com/ndelia/wren/internal/pkg/metrics"
)

func NewRouter(handlers *Handlers, logger *slog.Logger, cfg *config.Config, metricsRegistry metrics.Registry) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(metrics.PrometheusMiddleware(metricsRegistry))
	r.Use(middleware.Recoverer)
	r.Use(PrincipalMiddleware)

	r.Get("/health", handlers.HandleHealth)
	r.Get("/ready", handlers.HandleReady)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metricsRegistry.GetHandler())
	}

	r.Get("/swagger/*", httpswagger.Handler(
		httpswagger.URL(cfg.App.BaseURL+"/swagger/doc.json"),
	))

	r.Route("/links", func(r chi.Router) {
		r.Post("/shorten", handlers.HandleShorten)
		r.Get("/search", handlers.HandleSearch)
		r.Put("/{code}", handlers.HandleUpdate)
		r.Delete("/{code}", handlers.HandleDelete)
		r.Get("/{code}/stats", handlers.HandleStats)
	})

	r.Get("/{code}", handlers.HandleResolve)
	r.Head("/{code}", handlers.HandleResolve)
	r.Get("/{code}/info", handlers.HandleInfo)

	return r
}
