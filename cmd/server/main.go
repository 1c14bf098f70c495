package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/trailwatch/internal/adapter/api"
	"github.com/V4T54L/trailwatch/internal/adapter/api/handler"
	"github.com/V4T54L/trailwatch/internal/adapter/rulefile"
	"github.com/V4T54L/trailwatch/internal/pkg/config"
	"github.com/V4T54L/trailwatch/internal/pkg/logger"
	"github.com/V4T54L/trailwatch/internal/wiring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wiring.ProvideDependencies(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("failed to close dependencies", "error", err)
		}
	}()

	if cfg.WatchPredefinedRules && cfg.PredefinedRulesPath != "" {
		go func() {
			if err := rulefile.Watch(ctx, cfg.PredefinedRulesPath, logger, deps.Rules.SetPredefined); err != nil {
				logger.Error("predefined rule watcher stopped", "error", err)
			}
		}()
	}

	if deps.Spool != nil {
		go deps.Spool.Run(ctx, cfg.NotifierRetryInterval)
	}

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(prometheus.DefaultGatherer, deps.Checks, logger),
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Initialize API Server ---
	router := api.NewRouter(cfg, logger, deps.Metrics, deps.Tokens, api.Handlers{
		Auth:  handler.NewAuthHandler(deps.Auth, logger),
		Rules: handler.NewRulesHandler(deps.Rules, logger),
		Analysis: handler.NewAnalysisHandler(deps.Analyze, deps.Sources, handler.AnalysisOptions{
			ServerSource:    deps.ServerSource,
			ServerBucket:    cfg.AWSBucketName,
			ServerPrefix:    cfg.AWSLogsPrefix,
			DefaultStrategy: cfg.AnalysisStrategy,
			Redactor:        deps.Redactor,
		}, logger),
	})
	apiServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
