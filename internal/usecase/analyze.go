package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/decoder"
	"github.com/V4T54L/trailwatch/internal/domain"
)

const defaultFetchConcurrency = 8

// Blob processing stages reported in BlobError.
const (
	StageFetch  = "fetch"
	StageDecode = "decode"
)

// BlobError records a blob that could not be fetched or decoded. It never
// aborts the rest of the run.
type BlobError struct {
	Key   string
	Stage string
	Err   error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

// Target names the objects to analyze and where to read them from.
type Target struct {
	Source domain.LogSource
	Bucket string
	Prefix string
}

// Analysis is the outcome of one run. Results keep blob listing order and,
// within a blob, event order.
type Analysis struct {
	Strategy string
	Results  []domain.Classification
	// Sources holds the blob key of each result.
	Sources []string
	Summary domain.RiskSummary
	Errors  []*BlobError
	Objects int
}

// AnalyzeService fetches, decodes and classifies audit logs.
type AnalyzeService struct {
	engine      *classifier.Engine
	decoder     *decoder.Decoder
	notifier    domain.Notifier
	concurrency int
	metrics     *metrics.AnalysisMetrics
	logger      *slog.Logger
}

// NewAnalyzeService creates an AnalyzeService. notifier and m may be nil.
func NewAnalyzeService(engine *classifier.Engine, dec *decoder.Decoder, notifier domain.Notifier, concurrency int, m *metrics.AnalysisMetrics, logger *slog.Logger) *AnalyzeService {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &AnalyzeService{
		engine:      engine,
		decoder:     dec,
		notifier:    notifier,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger.With("component", "analyze_service"),
	}
}

type blobResult struct {
	key    string
	events []domain.Event
	err    *BlobError
}

// AnalyzePrefix classifies every object under the target prefix.
func (s *AnalyzeService) AnalyzePrefix(ctx context.Context, t Target, strategyName string) (*Analysis, error) {
	ctx, span := otel.Tracer("analyze-service").Start(ctx, "AnalyzePrefix")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", t.Bucket), attribute.String("prefix", t.Prefix))
	defer s.observe("prefix", time.Now())

	strategy, err := s.strategy(strategyName)
	if err != nil {
		return nil, err
	}

	objects, err := t.Source.List(ctx, t.Bucket, t.Prefix)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(objects) == 0 {
		return nil, domain.ErrNoLogs
	}

	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = o.Key
	}
	blobs := s.fetchAll(ctx, t, keys, decoder.Auto)
	return s.classify(ctx, strategy, blobs), nil
}

// AnalyzeLatest classifies only the most recently modified object under the
// target prefix. A failure on that object is returned as a *BlobError.
func (s *AnalyzeService) AnalyzeLatest(ctx context.Context, t Target, strategyName string) (*Analysis, error) {
	ctx, span := otel.Tracer("analyze-service").Start(ctx, "AnalyzeLatest")
	defer span.End()
	defer s.observe("latest", time.Now())

	strategy, err := s.strategy(strategyName)
	if err != nil {
		return nil, err
	}

	objects, err := t.Source.List(ctx, t.Bucket, t.Prefix)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(objects) == 0 {
		return nil, domain.ErrNoLogs
	}

	latest := slices.MaxFunc(objects, func(a, b domain.ObjectInfo) int {
		return a.LastModified.Compare(b.LastModified)
	})
	s.logger.Info("Fetching latest log object", "bucket", t.Bucket, "key", latest.Key)

	blobs := s.fetchAll(ctx, t, []string{latest.Key}, decoder.Auto)
	if blobs[0].err != nil {
		return nil, blobs[0].err
	}
	return s.classify(ctx, strategy, blobs), nil
}

// ClassifyEvents classifies events the caller already holds.
func (s *AnalyzeService) ClassifyEvents(ctx context.Context, events []domain.Event, strategyName string) (*Analysis, error) {
	ctx, span := otel.Tracer("analyze-service").Start(ctx, "ClassifyEvents")
	defer span.End()
	defer s.observe("inline", time.Now())

	strategy, err := s.strategy(strategyName)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, strategy, []blobResult{{key: "inline", events: events}}), nil
}

func (s *AnalyzeService) strategy(name string) (classifier.Strategy, error) {
	strategy, err := s.engine.Strategy(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return strategy, nil
}

// fetchAll retrieves and decodes keys with at most s.concurrency blobs in
// flight. The result slice is index-aligned with keys.
func (s *AnalyzeService) fetchAll(ctx context.Context, t Target, keys []string, mode decoder.Mode) []blobResult {
	ctx, span := otel.Tracer("analyze-service").Start(ctx, "fetchAll")
	defer span.End()
	span.SetAttributes(attribute.Int("objects", len(keys)))

	results := make([]blobResult, len(keys))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, key := range keys {
		results[i].key = key
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].err = &BlobError{Key: key, Stage: StageFetch, Err: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(r *blobResult) {
			defer wg.Done()
			defer func() { <-sem }()
			r.events, r.err = s.fetchOne(ctx, t, r.key, mode)
		}(&results[i])
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.err == nil:
			s.countBlob("ok")
		case r.err.Stage == StageDecode:
			s.countBlob("decode_error")
		default:
			s.countBlob("source_error")
		}
		if r.err != nil {
			s.logger.Warn("Skipping log object", "key", r.key, "stage", r.err.Stage, "error", r.err.Err)
		}
	}
	return results
}

func (s *AnalyzeService) fetchOne(ctx context.Context, t Target, key string, mode decoder.Mode) ([]domain.Event, *BlobError) {
	raw, err := t.Source.Fetch(ctx, t.Bucket, key)
	if err != nil {
		return nil, &BlobError{Key: key, Stage: StageFetch, Err: err}
	}
	events, err := s.decoder.Decode(key, raw, mode)
	if err != nil {
		return nil, &BlobError{Key: key, Stage: StageDecode, Err: err}
	}
	return events, nil
}

func (s *AnalyzeService) classify(ctx context.Context, strategy classifier.Strategy, blobs []blobResult) *Analysis {
	a := &Analysis{Strategy: strategy.Name(), Objects: len(blobs)}
	for _, b := range blobs {
		if b.err != nil {
			a.Errors = append(a.Errors, b.err)
			continue
		}
		for _, ev := range b.events {
			c := strategy.Classify(ev)
			a.Results = append(a.Results, c)
			a.Sources = append(a.Sources, b.key)
			a.Summary.Add(c.Risk)
			if s.metrics != nil {
				s.metrics.EventsClassified.WithLabelValues(a.Strategy, c.Risk.String()).Inc()
			}
		}
	}

	s.notifyHigh(ctx, a)
	s.logger.Info("Analysis complete",
		"strategy", a.Strategy,
		"objects", a.Objects,
		"events", len(a.Results),
		"high", a.Summary.High,
		"failed_objects", len(a.Errors),
	)
	return a
}

// notifyHigh hands high-risk results to the notifier. Failures are logged only.
func (s *AnalyzeService) notifyHigh(ctx context.Context, a *Analysis) {
	if s.notifier == nil || a.Summary.High == 0 {
		return
	}

	now := time.Now().UTC()
	findings := make([]domain.Finding, 0, a.Summary.High)
	for i, c := range a.Results {
		if c.Risk != domain.RiskHigh {
			continue
		}
		findings = append(findings, domain.Finding{
			ID:         uuid.New(),
			Source:     a.Sources[i],
			EventName:  c.Event.EventName(),
			EventTime:  c.Event.EventTime(),
			SourceIP:   c.Event.SourceIP(),
			Risk:       c.Risk,
			Reasons:    c.Reasons,
			Strategy:   a.Strategy,
			DetectedAt: now,
		})
	}

	if err := s.notifier.Notify(ctx, findings); err != nil {
		s.logger.Warn("Failed to deliver high-risk findings", "count", len(findings), "error", err)
		s.countNotifications("error", len(findings))
		return
	}
	s.countNotifications("sent", len(findings))
}

func (s *AnalyzeService) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.AnalysisDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (s *AnalyzeService) countBlob(status string) {
	if s.metrics != nil {
		s.metrics.BlobsTotal.WithLabelValues(status).Inc()
	}
}

func (s *AnalyzeService) countNotifications(status string, n int) {
	if s.metrics != nil {
		s.metrics.Notifications.WithLabelValues(status).Add(float64(n))
	}
}
