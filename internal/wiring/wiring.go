// Package wiring builds the application's dependencies from configuration.
package wiring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/trailwatch/internal/adapter/api/handler"
	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/adapter/notifier"
	"github.com/V4T54L/trailwatch/internal/adapter/pii"
	"github.com/V4T54L/trailwatch/internal/adapter/repository"
	"github.com/V4T54L/trailwatch/internal/adapter/repository/file"
	"github.com/V4T54L/trailwatch/internal/adapter/repository/memory"
	"github.com/V4T54L/trailwatch/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/trailwatch/internal/adapter/repository/redis"
	"github.com/V4T54L/trailwatch/internal/adapter/repository/wal"
	"github.com/V4T54L/trailwatch/internal/adapter/rulefile"
	s3source "github.com/V4T54L/trailwatch/internal/adapter/source/s3"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/decoder"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/pkg/config"
	"github.com/V4T54L/trailwatch/internal/pkg/token"
	"github.com/V4T54L/trailwatch/internal/usecase"
)

// Dependencies holds everything the server and CLI need. Fields the caller
// did not ask for are nil.
type Dependencies struct {
	Metrics  *metrics.AnalysisMetrics
	Rules    *usecase.RuleService
	Analyze  *usecase.AnalyzeService
	Redactor *pii.Redactor

	Auth    *usecase.AuthService
	Tokens  *token.Manager
	Sources *s3source.Factory
	// ServerSource reads the configured server bucket; nil when no bucket is set.
	ServerSource domain.LogSource
	// Checks are the backends reported by the health endpoint.
	Checks map[string]handler.Pinger
	// Spool redelivers findings the notifier could not send; nil when spooling is off.
	Spool *notifier.SpoolingNotifier

	closers []func() error
}

// Close releases every connection opened while building the dependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type builder struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Dependencies
	rdb    *redis.Client
}

func newBuilder(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *builder {
	return &builder{
		cfg:    cfg,
		logger: logger,
		deps: &Dependencies{
			Metrics: metrics.NewAnalysisMetrics(reg),
			Checks:  make(map[string]handler.Pinger),
		},
	}
}

// ProvideAnalysis builds the rule set, analysis service and redactor.
func ProvideAnalysis(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Dependencies, error) {
	b := newBuilder(cfg, logger, reg)
	if err := b.analysis(ctx); err != nil {
		_ = b.deps.Close()
		return nil, err
	}
	return b.deps, nil
}

// ProvideDependencies builds everything the API server needs.
func ProvideDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Dependencies, error) {
	b := newBuilder(cfg, logger, reg)
	if err := b.analysis(ctx); err != nil {
		_ = b.deps.Close()
		return nil, err
	}
	if err := b.accounts(ctx); err != nil {
		_ = b.deps.Close()
		return nil, err
	}
	if err := b.sources(ctx); err != nil {
		_ = b.deps.Close()
		return nil, err
	}
	return b.deps, nil
}

func (b *builder) analysis(ctx context.Context) error {
	predefined, err := rulefile.Load(b.cfg.PredefinedRulesPath)
	if err != nil {
		return fmt.Errorf("failed to load predefined rules: %w", err)
	}

	ruleStore, err := b.provideRuleStore()
	if err != nil {
		return err
	}
	rules := usecase.NewRuleService(predefined, ruleStore, b.deps.Metrics, b.logger)
	if err := rules.Load(ctx); err != nil {
		return err
	}

	n, err := b.provideNotifier()
	if err != nil {
		return err
	}

	engine := classifier.NewEngine(rules, b.cfg.TrustedRegionMarker)
	b.deps.Rules = rules
	b.deps.Analyze = usecase.NewAnalyzeService(engine, decoder.New(b.logger), n, b.cfg.FetchConcurrency, b.deps.Metrics, b.logger)
	b.deps.Redactor = pii.NewRedactor(b.cfg.RedactFields, b.logger)
	return nil
}

func (b *builder) accounts(ctx context.Context) error {
	users, err := b.provideUserRepository(ctx)
	if err != nil {
		return err
	}
	b.deps.Tokens = token.NewManager(b.cfg.JWTSecret, b.cfg.JWTExpiry)
	b.deps.Auth = usecase.NewAuthService(users, b.deps.Tokens, b.deps.Metrics, b.logger)
	return nil
}

func (b *builder) sources(ctx context.Context) error {
	opts := s3source.Options{Region: b.cfg.AWSRegion, Endpoint: b.cfg.AWSEndpointURL}
	b.deps.Sources = s3source.NewFactory(opts, b.logger)

	if b.cfg.AWSBucketName == "" {
		return nil
	}
	var creds aws.CredentialsProvider
	if b.cfg.ServerCredentials() {
		creds = s3source.StaticCredentials(b.cfg.AWSAccessKeyID, b.cfg.AWSSecretAccessKey)
	}
	client, err := s3source.NewClient(ctx, opts, creds)
	if err != nil {
		return err
	}
	b.deps.ServerSource = s3source.NewSource(client, b.logger)
	return nil
}

// redis returns the shared client, connecting on first use.
func (b *builder) redis() *redis.Client {
	if b.rdb == nil {
		b.rdb = redis.NewClient(&redis.Options{Addr: b.cfg.RedisAddr})
		b.deps.closers = append(b.deps.closers, b.rdb.Close)
		rdb := b.rdb
		b.deps.Checks["redis"] = pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return b.rdb
}

func (b *builder) provideRuleStore() (domain.Store[[]domain.Rule], error) {
	switch b.cfg.RuleStore {
	case "file":
		return file.NewJSONStore[[]domain.Rule](b.cfg.CustomRulesPath, b.logger)
	case "redis":
		return redisrepo.NewJSONStore[[]domain.Rule](b.redis(), b.cfg.RedisKey("custom_rules"), b.logger), nil
	case "memory":
		return memory.NewStore[[]domain.Rule](nil), nil
	default:
		return nil, fmt.Errorf("invalid rule store type: %s", b.cfg.RuleStore)
	}
}

func (b *builder) provideUserRepository(ctx context.Context) (domain.UserRepository, error) {
	switch b.cfg.UserStore {
	case "file":
		store, err := file.NewJSONStore[map[string]domain.User](b.cfg.UsersPath, b.logger)
		if err != nil {
			return nil, err
		}
		return repository.NewStoreUserRepository(store), nil
	case "redis":
		store := redisrepo.NewJSONStore[map[string]domain.User](b.redis(), b.cfg.RedisKey("users"), b.logger)
		return repository.NewStoreUserRepository(store), nil
	case "memory":
		return repository.NewStoreUserRepository(memory.NewStore[map[string]domain.User](nil)), nil
	case "postgres":
		return b.providePostgresUsers(ctx)
	default:
		return nil, fmt.Errorf("invalid user store type: %s", b.cfg.UserStore)
	}
}

func (b *builder) providePostgresUsers(ctx context.Context) (domain.UserRepository, error) {
	db, err := sql.Open("postgres", b.cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	b.deps.closers = append(b.deps.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := postgres.NewUserRepository(db, b.logger, b.cfg.UserCacheTTL, b.deps.Metrics)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	b.deps.Checks["postgres"] = repo
	return repo, nil
}

func (b *builder) provideNotifier() (domain.Notifier, error) {
	n, err := b.provideBaseNotifier()
	if err != nil || n == nil || b.cfg.NotifierSpoolDir == "" {
		return n, err
	}

	spool, err := wal.Open[domain.Finding](b.cfg.NotifierSpoolDir, b.cfg.NotifierSpoolSegmentBytes, b.cfg.NotifierSpoolMaxBytes, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open notifier spool: %w", err)
	}
	b.deps.closers = append(b.deps.closers, spool.Close)
	b.deps.Spool = notifier.NewSpoolingNotifier(n, spool, b.deps.Metrics, b.logger)
	return b.deps.Spool, nil
}

func (b *builder) provideBaseNotifier() (domain.Notifier, error) {
	switch b.cfg.Notifier {
	case "", "none":
		return nil, nil
	case "stdout":
		return notifier.NewStdoutNotifier(os.Stdout), nil
	case "kafka":
		n := notifier.NewKafkaNotifier(notifier.NewKafkaWriter(b.cfg.KafkaBrokers, b.cfg.KafkaTopic), b.logger)
		b.deps.closers = append(b.deps.closers, n.Close)
		return n, nil
	default:
		return nil, fmt.Errorf("invalid notifier type: %s", b.cfg.Notifier)
	}
}
