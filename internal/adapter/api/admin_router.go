package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/trailwatch/internal/adapter/api/handler"
)

// NewAdminRouter creates the router for the admin server: Prometheus metrics
// from gatherer and a health check over checks.
func NewAdminRouter(gatherer prometheus.Gatherer, checks map[string]handler.Pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(checks, logger)

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", adminHandler.HealthCheck)

	return mux
}
