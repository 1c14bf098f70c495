// Command analyze classifies audit logs from local files, directories or an
// S3 prefix and prints the report as JSON.
//
//	analyze [-strategy rules|heuristic|coarse] [-latest] PATH|s3://bucket/prefix ...
//
// The exit status is 1 when any location or blob failed, 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/trailwatch/internal/adapter/source/local"
	s3source "github.com/V4T54L/trailwatch/internal/adapter/source/s3"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/pkg/config"
	"github.com/V4T54L/trailwatch/internal/pkg/logger"
	"github.com/V4T54L/trailwatch/internal/report"
	"github.com/V4T54L/trailwatch/internal/usecase"
	"github.com/V4T54L/trailwatch/internal/wiring"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type blobFailure struct {
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type targetReport struct {
	Location string             `json:"location"`
	Objects  int                `json:"objects"`
	Results  any                `json:"results"`
	Summary  domain.RiskSummary `json:"summary"`
	Errors   []blobFailure      `json:"errors"`
	Error    string             `json:"error,omitempty"`
}

type analysisReport struct {
	Strategy string             `json:"strategy"`
	Targets  []targetReport     `json:"targets"`
	Summary  domain.RiskSummary `json:"summary"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	strategy := fs.String("strategy", "", "Classification strategy (rules, heuristic, coarse); defaults to ANALYSIS_STRATEGY")
	latest := fs.Bool("latest", false, "Only analyze the most recently modified object of each location")
	region := fs.String("region", "", "AWS region for s3:// locations; defaults to AWS_REGION")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: analyze [flags] PATH|s3://bucket/prefix ...")
		fs.PrintDefaults()
		return exitUsage
	}

	cfg, err := config.LoadAnalysis()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if *strategy == "" {
		*strategy = cfg.AnalysisStrategy
	}
	if *region != "" {
		cfg.AWSRegion = *region
	}

	log := logger.NewWithWriter(stderr, cfg.LogLevel)
	deps, err := wiring.ProvideAnalysis(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Error("failed to initialize analysis", "error", err)
		return exitFailed
	}
	defer deps.Close()

	out := analysisReport{Strategy: *strategy, Targets: make([]targetReport, 0, fs.NArg())}
	status := exitOK
	for _, location := range fs.Args() {
		tr := targetReport{Location: location, Results: []any{}, Errors: []blobFailure{}}

		target, err := resolve(ctx, cfg, location, log)
		var a *usecase.Analysis
		if err == nil {
			if *latest {
				a, err = deps.Analyze.AnalyzeLatest(ctx, target, *strategy)
			} else {
				a, err = deps.Analyze.AnalyzePrefix(ctx, target, *strategy)
			}
		}

		switch {
		case errors.Is(err, usecase.ErrInvalidInput):
			fmt.Fprintln(stderr, err)
			return exitUsage
		case err != nil:
			tr.Error = err.Error()
			status = exitFailed
		default:
			out.Strategy = a.Strategy
			tr.Objects = a.Objects
			tr.Results = entries(a, deps.Redactor)
			tr.Summary = a.Summary
			for _, e := range a.Errors {
				tr.Errors = append(tr.Errors, blobFailure{Key: e.Key, Stage: e.Stage, Error: e.Err.Error()})
				status = exitFailed
			}
			for _, c := range a.Results {
				out.Summary.Add(c.Risk)
			}
		}
		out.Targets = append(out.Targets, tr)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("failed to write report", "error", err)
		return exitFailed
	}
	return status
}

// resolve maps a command-line location to a log source and bucket/prefix.
func resolve(ctx context.Context, cfg *config.Config, location string, log *slog.Logger) (usecase.Target, error) {
	if strings.HasPrefix(location, "s3://") {
		bucket, prefix, err := s3source.ParseLocation(location)
		if err != nil {
			return usecase.Target{}, err
		}
		var creds aws.CredentialsProvider
		if cfg.ServerCredentials() {
			creds = s3source.StaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		}
		client, err := s3source.NewClient(ctx, s3source.Options{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpointURL}, creds)
		if err != nil {
			return usecase.Target{}, err
		}
		return usecase.Target{Source: s3source.NewSource(client, log), Bucket: bucket, Prefix: prefix}, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		return usecase.Target{}, fmt.Errorf("%w: %w", domain.ErrSource, err)
	}
	if info.IsDir() {
		return usecase.Target{Source: local.NewSource(""), Bucket: location}, nil
	}
	return usecase.Target{Source: local.NewFiles(location)}, nil
}

func entries(a *usecase.Analysis, redactor report.Redactor) any {
	if a.Strategy == classifier.StrategyRules {
		return report.LogEntries(a.Results, redactor)
	}
	return report.EventEntries(a.Results)
}
