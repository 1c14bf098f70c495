package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/trailwatch/internal/adapter/api/handler"
	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/decoder"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/domain/mocks"
	"github.com/V4T54L/trailwatch/internal/pkg/config"
	"github.com/V4T54L/trailwatch/internal/pkg/token"
	"github.com/V4T54L/trailwatch/internal/usecase"
)

type stubAuth struct{}

func (stubAuth) Register(context.Context, string, string) error { return nil }
func (stubAuth) Login(context.Context, string, string) (string, error) {
	return "", usecase.ErrInvalidCredentials
}
func (stubAuth) ChangePassword(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *token.Manager, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalysisMetrics(reg)
	tokens := token.NewManager("router-secret", time.Hour)

	rules := usecase.NewRuleService(nil, &mocks.MockStore[[]domain.Rule]{}, m, logger)
	engine := classifier.NewEngine(rules, "IN")
	analyze := usecase.NewAnalyzeService(engine, decoder.New(logger), nil, 2, m, logger)

	cfg := &config.Config{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MaxBodyBytes:       1 << 10,
		LoginRatePerSec:    0.001,
		LoginBurst:         2,
	}
	router := NewRouter(cfg, logger, m, tokens, Handlers{
		Auth:     handler.NewAuthHandler(stubAuth{}, logger),
		Rules:    handler.NewRulesHandler(rules, logger),
		Analysis: handler.NewAnalysisHandler(analyze, nil, handler.AnalysisOptions{}, logger),
	})
	return router, tokens, reg
}

func do(h http.Handler, method, target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_ProtectsAPI(t *testing.T) {
	router, tokens, _ := newTestRouter(t)

	rr := do(router, http.MethodGet, "/api/rules", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"message":"Token is missing"}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/api/rules", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"message":"Token is invalid or expired"}`, rr.Body.String())

	tok, err := tokens.Generate("a@example.com")
	require.NoError(t, err)

	rr = do(router, http.MethodGet, "/api/rules", "", tok)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"predefinedRules":[],"customRules":[]}`, rr.Body.String())

	rr = do(router, http.MethodPost, "/api/classify", `{"events":[{"eventName":"DeleteTrail"}],"strategy":"coarse"}`, tok)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"riskLevel":"High"`)
}

func TestRouter_RegisterIsPublic(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := do(router, http.MethodPost, "/register", `{"email":"a@example.com","password":"secret1"}`, "")

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRouter_LoginRateLimited(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rr := do(router, http.MethodPost, "/login", `{"email":"a@example.com","password":"x"}`, "")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := do(router, http.MethodPost, "/login", `{"email":"a@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	router, tokens, _ := newTestRouter(t)
	tok, _ := tokens.Generate("a@example.com")

	big := `{"customRules":[` + strings.Repeat(`{"name":"x","risk":"Low","match":{"eventName":"y"}},`, 50) + `]}`
	rr := do(router, http.MethodPost, "/api/rules/custom", big, tok)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/rules", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRouter(t *testing.T) {
	_, _, reg := newTestRouter(t)
	admin := NewAdminRouter(reg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := do(admin, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(admin, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "trailwatch_rules_loaded")
}
