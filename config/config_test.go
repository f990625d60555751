package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "no start urls",
			mutate: func(cfg *Config) {
				cfg.StartURLs = nil
			},
			wantErr: "start URLs",
		},
		{
			name: "start url without host",
			mutate: func(cfg *Config) {
				cfg.StartURLs = []string{"http://"}
			},
			wantErr: "host",
		},
		{
			name: "zero max requests",
			mutate: func(cfg *Config) {
				cfg.MaxRequests = 0
			},
			wantErr: "max requests",
		},
		{
			name: "negative concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = -1
			},
			wantErr: "concurrency",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff exceeds max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = 1 * time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "enrichment without api base url",
			mutate: func(cfg *Config) {
				cfg.UseBggAPI = true
				cfg.APIBaseURL = ""
			},
			wantErr: "api base URL",
		},
		{
			name: "enrichment without api timeout",
			mutate: func(cfg *Config) {
				cfg.UseBggAPI = true
				cfg.APITimeout = 0
			},
			wantErr: "api timeout",
		},
		{
			name: "empty dataset dir",
			mutate: func(cfg *Config) {
				cfg.DatasetDir = ""
			},
			wantErr: "dataset directory",
		},
		{
			name: "empty blob dir",
			mutate: func(cfg *Config) {
				cfg.BlobDir = ""
			},
			wantErr: "blob directory",
		},
		{
			name: "zero batch size",
			mutate: func(cfg *Config) {
				cfg.BatchSize = 0
			},
			wantErr: "batch size",
		},
		{
			name: "zero dedupe size",
			mutate: func(cfg *Config) {
				cfg.DedupeMaxSize = 0
			},
			wantErr: "dedupe max size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestDisabledEnrichmentSkipsAPIChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseBggAPI = false
	cfg.APIBaseURL = ""
	cfg.APITimeout = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("api settings should not be checked when enrichment is off, got %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BGGWATCH_TEST_INT", "42")
	if v, ok, err := EnvInt("BGGWATCH_TEST_INT"); err != nil || !ok || v != 42 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (42, true, nil)", v, ok, err)
	}

	t.Setenv("BGGWATCH_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("BGGWATCH_TEST_INT"); err == nil {
		t.Fatalf("expected error for non-integer value")
	}

	if _, ok, err := EnvInt("BGGWATCH_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report absent")
	}

	t.Setenv("BGGWATCH_TEST_STR", "hello")
	if v, ok := EnvString("BGGWATCH_TEST_STR"); !ok || v != "hello" {
		t.Fatalf("EnvString = (%q, %v)", v, ok)
	}

	t.Setenv("BGGWATCH_TEST_BOOL", "true")
	if v, ok, err := EnvBool("BGGWATCH_TEST_BOOL"); err != nil || !ok || !v {
		t.Fatalf("EnvBool = (%v, %v, %v), want (true, true, nil)", v, ok, err)
	}
}
