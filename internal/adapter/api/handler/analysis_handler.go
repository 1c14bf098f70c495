package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/trailwatch/internal/adapter/source/s3"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/report"
	"github.com/V4T54L/trailwatch/internal/usecase"
)

// Analyzer is the analysis use case behind AnalysisHandler.
type Analyzer interface {
	AnalyzePrefix(ctx context.Context, t usecase.Target, strategy string) (*usecase.Analysis, error)
	AnalyzeLatest(ctx context.Context, t usecase.Target, strategy string) (*usecase.Analysis, error)
	ClassifyEvents(ctx context.Context, events []domain.Event, strategy string) (*usecase.Analysis, error)
}

// SourceFactory builds a log source bound to caller-supplied credentials.
type SourceFactory interface {
	ForCredentials(ctx context.Context, accessKey, secretKey, region string) (domain.LogSource, error)
}

// AnalysisOptions configures AnalysisHandler. A nil ServerSource disables
// GET /api/fetch_logs.
type AnalysisOptions struct {
	ServerSource    domain.LogSource
	ServerBucket    string
	ServerPrefix    string
	DefaultStrategy string
	Redactor        report.Redactor
}

// AnalysisHandler runs classification over stored or inline audit logs.
type AnalysisHandler struct {
	analyzer Analyzer
	sources  SourceFactory
	opts     AnalysisOptions
	logger   *slog.Logger
}

func NewAnalysisHandler(analyzer Analyzer, sources SourceFactory, opts AnalysisOptions, logger *slog.Logger) *AnalysisHandler {
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = classifier.StrategyRules
	}
	return &AnalysisHandler{
		analyzer: analyzer,
		sources:  sources,
		opts:     opts,
		logger:   logger.With("component", "analysis_handler"),
	}
}

type blobFailure struct {
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type connectResponse struct {
	Logs    []report.LogEntry  `json:"logs"`
	Summary domain.RiskSummary `json:"summary"`
	Errors  []blobFailure      `json:"errors"`
}

type analysisResponse struct {
	Results any                `json:"results"`
	Summary domain.RiskSummary `json:"summary"`
	Errors  []blobFailure      `json:"errors"`
}

// FetchLogs classifies the newest object under the configured server bucket
// with the fine-grained heuristic.
// GET /api/fetch_logs
func (h *AnalysisHandler) FetchLogs(w http.ResponseWriter, r *http.Request) {
	if h.opts.ServerSource == nil || h.opts.ServerBucket == "" {
		respondWithJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{"error": "Server-side log bucket is not configured."})
		return
	}

	target := usecase.Target{Source: h.opts.ServerSource, Bucket: h.opts.ServerBucket, Prefix: h.opts.ServerPrefix}
	a, err := h.analyzer.AnalyzeLatest(r.Context(), target, classifier.StrategyHeuristic)
	if err != nil {
		var blobErr *usecase.BlobError
		switch {
		case errors.Is(err, domain.ErrNoLogs):
			respondWithJSON(w, h.logger, http.StatusNotFound, map[string]string{"error": "No logs found in the specified prefix."})
		case errors.As(err, &blobErr):
			h.logger.Error("failed to read latest log", "key", blobErr.Key, "error", blobErr.Err)
			respondWithJSON(w, h.logger, http.StatusInternalServerError, map[string]string{"error": "Failed to read or parse log: " + blobErr.Err.Error()})
		default:
			h.logger.Error("failed to list logs", "bucket", target.Bucket, "error", err)
			respondWithJSON(w, h.logger, http.StatusInternalServerError, map[string]string{"error": "Failed to list objects: " + err.Error()})
		}
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, report.EventEntries(a.Results))
}

type connectRequest struct {
	AccessKey string `json:"accessKey" validate:"required"`
	SecretKey string `json:"secretKey" validate:"required"`
	Region    string `json:"region"`
	LogPath   string `json:"logPath" validate:"required"`
}

// ConnectAWS classifies every object under a caller-supplied S3 location with
// the rule set.
// POST /api/connect-aws
func (h *AnalysisHandler) ConnectAWS(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithMessage(w, h.logger, http.StatusBadRequest, "accessKey, secretKey and logPath are required")
		return
	}

	a, ok := h.analyzeLocation(w, r, req.AccessKey, req.SecretKey, req.Region, req.LogPath, classifier.StrategyRules)
	if !ok {
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, connectResponse{
		Logs:    report.LogEntries(a.Results, h.opts.Redactor),
		Summary: a.Summary,
		Errors:  failures(a.Errors),
	})
}

type analyzeRequest struct {
	Key      string `json:"key" validate:"required"`
	Secret   string `json:"secret" validate:"required"`
	Region   string `json:"region"`
	S3Path   string `json:"s3_path" validate:"required"`
	Strategy string `json:"strategy"`
}

// Analyze classifies an S3 location with a selectable strategy, coarse by
// default.
// POST /api/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithMessage(w, h.logger, http.StatusBadRequest, "key, secret and s3_path are required")
		return
	}
	if req.Strategy == "" {
		req.Strategy = classifier.StrategyCoarse
	}

	a, ok := h.analyzeLocation(w, r, req.Key, req.Secret, req.Region, req.S3Path, req.Strategy)
	if !ok {
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, h.response(a))
}

// Classify classifies events supplied in the request body.
// POST /api/classify
func (h *AnalysisHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Events   []domain.Event `json:"events"`
		Strategy string         `json:"strategy"`
	}
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if req.Strategy == "" {
		req.Strategy = h.opts.DefaultStrategy
	}

	a, err := h.analyzer.ClassifyEvents(r.Context(), req.Events, req.Strategy)
	if err != nil {
		h.respondWithAnalysisError(w, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, h.response(a))
}

func (h *AnalysisHandler) analyzeLocation(w http.ResponseWriter, r *http.Request, accessKey, secretKey, region, location, strategy string) (*usecase.Analysis, bool) {
	bucket, prefix, err := s3.ParseLocation(location)
	if err != nil {
		respondWithMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return nil, false
	}

	source, err := h.sources.ForCredentials(r.Context(), accessKey, secretKey, region)
	if err != nil {
		h.logger.Error("failed to build log source", "error", err)
		respondWithMessage(w, h.logger, http.StatusBadGateway, "Error connecting to AWS: "+err.Error())
		return nil, false
	}

	a, err := h.analyzer.AnalyzePrefix(r.Context(), usecase.Target{Source: source, Bucket: bucket, Prefix: prefix}, strategy)
	if err != nil {
		h.respondWithAnalysisError(w, err)
		return nil, false
	}
	return a, true
}

func (h *AnalysisHandler) response(a *usecase.Analysis) analysisResponse {
	var results any
	if a.Strategy == classifier.StrategyRules {
		results = report.LogEntries(a.Results, h.opts.Redactor)
	} else {
		results = report.EventEntries(a.Results)
	}
	return analysisResponse{Results: results, Summary: a.Summary, Errors: failures(a.Errors)}
}

func (h *AnalysisHandler) respondWithAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		respondWithMessage(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNoLogs):
		respondWithMessage(w, h.logger, http.StatusNotFound, "No logs found at specified path")
	case errors.Is(err, domain.ErrSource):
		h.logger.Warn("log source failed", "error", err)
		respondWithMessage(w, h.logger, http.StatusBadGateway, "Error fetching logs from AWS: "+err.Error())
	default:
		h.logger.Error("analysis failed", "error", err)
		respondWithMessage(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}

func failures(errs []*usecase.BlobError) []blobFailure {
	out := make([]blobFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, blobFailure{Key: e.Key, Stage: e.Stage, Error: e.Err.Error()})
	}
	return out
}
