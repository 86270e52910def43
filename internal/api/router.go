package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/api/middleware"
)

// NewRouter creates and configures the HTTP surface: the WebSocket mount,
// the health endpoint, and Prometheus scraping.
func NewRouter(logger zerolog.Logger, ws http.Handler, health http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests
	r.Use(middleware.Metrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", health)
	r.Handle("/ws", ws)

	return r
}
