// Package config holds collector configuration and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds every knob the collector recognises.
type Config struct {
	StartURLs          []string
	MaxRequests        int // whole-run page visit budget
	Concurrency        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	UseBrowser         bool
	UseBggAPI          bool
	FollowInternalOnly bool
	APIBaseURL         string
	APITimeout         time.Duration
	DatasetDir         string
	BlobDir            string
	UserAgent          string
	RespectRobotsTxt   bool
	MetricsAddr        string
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	Verbose            bool
}

// DefaultConfig returns conservative defaults targeting the BGG hot list.
func DefaultConfig() *Config {
	return &Config{
		StartURLs:          []string{"https://boardgamegeek.com/hot"},
		MaxRequests:        100,
		Concurrency:        4,
		Delay:              500 * time.Millisecond,
		RandomDelay:        250 * time.Millisecond,
		Timeout:            15 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		UseBrowser:         false,
		UseBggAPI:          true,
		FollowInternalOnly: true,
		APIBaseURL:         "https://boardgamegeek.com",
		APITimeout:         10 * time.Second,
		DatasetDir:         "output",
		BlobDir:            "output/blobs",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt:   false,
		MetricsAddr:        "",
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return fmt.Errorf("start URLs cannot be empty")
	}
	for _, raw := range c.StartURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid start URL %q: %w", raw, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("start URL %q must include a host", raw)
		}
	}

	if c.MaxRequests <= 0 {
		return fmt.Errorf("max requests must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}

	if c.UseBggAPI {
		if c.APIBaseURL == "" {
			return fmt.Errorf("api base URL cannot be empty when enrichment is enabled")
		}
		parsed, err := url.Parse(c.APIBaseURL)
		if err != nil {
			return fmt.Errorf("invalid api base URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("api base URL must include a host")
		}
		if c.APITimeout <= 0 {
			return fmt.Errorf("api timeout must be positive")
		}
	}

	if c.DatasetDir == "" {
		return fmt.Errorf("dataset directory cannot be empty")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q is not an integer: %w", name, raw, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// EnvBool reads a boolean environment variable, reporting presence.
func EnvBool(name string) (bool, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s=%q is not a boolean: %w", name, raw, err)
	}
	return value, true, nil
}
