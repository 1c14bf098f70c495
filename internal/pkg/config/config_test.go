package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerAddr != ":5000" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.AnalysisStrategy != "rules" || cfg.TrustedRegionMarker != "IN" {
		t.Errorf("unexpected analysis defaults: %q %q", cfg.AnalysisStrategy, cfg.TrustedRegionMarker)
	}
	if len(cfg.RedactFields) != 2 || cfg.RedactFields[1] != "requestParameters.password" {
		t.Errorf("RedactFields = %v", cfg.RedactFields)
	}
	if cfg.RedisKey("users") != "trailwatch:users" {
		t.Errorf("RedisKey = %q", cfg.RedisKey("users"))
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret":         {"JWT_SECRET": ""},
		"unknown strategy":       {"ANALYSIS_STRATEGY": "magic"},
		"unknown rule store":     {"RULE_STORE": "s3"},
		"redis without address":  {"RULE_STORE": "redis"},
		"redis users no address": {"USER_STORE": "redis"},
		"postgres without url":   {"USER_STORE": "postgres"},
		"kafka without brokers":  {"NOTIFIER": "kafka"},
		"zero fetch concurrency": {"FETCH_CONCURRENCY": "0"},
		"malformed endpoint":     {"AWS_ENDPOINT_URL": "not a url"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadAnalysis_NoSecretNeeded(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without JWT_SECRET should fail")
	}
	cfg, err := LoadAnalysis()
	if err != nil {
		t.Fatalf("LoadAnalysis() error = %v", err)
	}
	if cfg.FetchConcurrency != 8 {
		t.Errorf("FetchConcurrency = %d", cfg.FetchConcurrency)
	}

	t.Setenv("ANALYSIS_STRATEGY", "magic")
	if _, err := LoadAnalysis(); err == nil {
		t.Error("LoadAnalysis() should still validate the strategy")
	}
}
