package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a backend whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. checks maps a backend name to
// its pinger and may be empty.
func NewAdminHandler(checks map[string]Pinger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{checks: checks, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck pings every configured backend.
// GET /health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "backend", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	respondWithJSON(w, h.logger, code, resp)
}
