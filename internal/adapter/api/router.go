package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/V4T54L/trailwatch/internal/adapter/api/handler"
	"github.com/V4T54L/trailwatch/internal/adapter/api/middleware"
	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/pkg/config"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth     *handler.AuthHandler
	Rules    *handler.RulesHandler
	Analysis *handler.AnalysisHandler
}

// NewRouter creates and configures the main HTTP router for the API server.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.AnalysisMetrics,
	tokens middleware.TokenValidator,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger, m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.MaxBytes(cfg.MaxBodyBytes))

	loginLimiter := middleware.NewInMemoryRateLimiter(rate.Limit(cfg.LoginRatePerSec), cfg.LoginBurst)

	r.Post("/register", h.Auth.Register)
	r.With(middleware.RateLimit(loginLimiter, logger)).Post("/login", h.Auth.Login)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(tokens, logger))

		r.Put("/account/password", h.Auth.ChangePassword)

		r.Get("/rules", h.Rules.List)
		r.Post("/rules/custom", h.Rules.ReplaceCustom)

		r.Get("/fetch_logs", h.Analysis.FetchLogs)
		r.Post("/connect-aws", h.Analysis.ConnectAWS)
		r.Post("/analyze", h.Analysis.Analyze)
		r.Post("/classify", h.Analysis.Classify)
	})

	return r
}
