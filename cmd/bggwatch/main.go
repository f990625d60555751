package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bggwatch/bggwatch/bggapi"
	"github.com/bggwatch/bggwatch/config"
	"github.com/bggwatch/bggwatch/models"
	"github.com/bggwatch/bggwatch/pipeline"
	"github.com/bggwatch/bggwatch/reconcile"
	"github.com/bggwatch/bggwatch/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()

	requestsDefault := defaultCfg.MaxRequests
	if value, ok, err := config.EnvInt("BGGWATCH_MAX_REQUESTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BGGWATCH_MAX_REQUESTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		requestsDefault = value
	}
	concurrencyDefault := defaultCfg.Concurrency
	if value, ok, err := config.EnvInt("BGGWATCH_CONCURRENCY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BGGWATCH_CONCURRENCY: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrencyDefault = value
	}
	datasetDefault := defaultCfg.DatasetDir
	if value, ok := config.EnvString("BGGWATCH_DATASET_DIR"); ok {
		datasetDefault = value
	}
	blobDefault := defaultCfg.BlobDir
	if value, ok := config.EnvString("BGGWATCH_BLOB_DIR"); ok {
		blobDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("BGGWATCH_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	apiDefault := defaultCfg.UseBggAPI
	if value, ok, err := config.EnvBool("BGGWATCH_USE_BGG_API"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BGGWATCH_USE_BGG_API: %v\n", err)
		os.Exit(1)
	} else if ok {
		apiDefault = value
	}

	startURLs := flag.String("start-urls", strings.Join(defaultCfg.StartURLs, ","), "Comma-separated seed URLs")
	maxRequests := flag.Int("max-requests", requestsDefault, "Whole-run page visit budget")
	concurrency := flag.Int("concurrency", concurrencyDefault, "Number of concurrent page visits")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	useBrowser := flag.Bool("use-browser", defaultCfg.UseBrowser, "Render item pages through a headless browser")
	useBggAPI := flag.Bool("use-bgg-api", apiDefault, "Enrich item records from the BGG XML API")
	followInternal := flag.Bool("follow-internal-only", defaultCfg.FollowInternalOnly, "Only follow links on the seed's own host")
	apiBaseURL := flag.String("api-base-url", defaultCfg.APIBaseURL, "XML API origin")
	apiTimeoutMs := flag.Int("api-timeout", int(defaultCfg.APITimeout/time.Millisecond), "Enrichment request timeout (milliseconds)")
	datasetDir := flag.String("dataset-dir", datasetDefault, "Directory for items.jsonl / rows.jsonl")
	blobDir := flag.String("blob-dir", blobDefault, "Directory for raw API payload blobs")
	respectRobots := flag.Bool("respect-robots", defaultCfg.RespectRobotsTxt, "Respect robots.txt directives")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.StartURLs = splitURLs(*startURLs)
	cfg.MaxRequests = *maxRequests
	cfg.Concurrency = *concurrency
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.UseBrowser = *useBrowser
	cfg.UseBggAPI = *useBggAPI
	cfg.FollowInternalOnly = *followInternal
	cfg.APIBaseURL = *apiBaseURL
	cfg.APITimeout = time.Duration(*apiTimeoutMs) * time.Millisecond
	cfg.DatasetDir = *datasetDir
	cfg.BlobDir = *blobDir
	cfg.RespectRobotsTxt = *respectRobots
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting collection",
		slog.Any("start_urls", cfg.StartURLs),
		slog.Int("max_requests", cfg.MaxRequests),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Bool("use_bgg_api", cfg.UseBggAPI),
		slog.Bool("use_browser", cfg.UseBrowser),
	)

	blobs, err := pipeline.NewFileBlobStore(cfg.BlobDir)
	if err != nil {
		slog.Error("initialising blob store", slog.Any("error", err))
		os.Exit(1)
	}

	deps := scraper.Deps{Merger: reconcile.NewMerger(blobs)}
	if cfg.UseBggAPI {
		deps.Enricher = bggapi.NewClient(cfg.APIBaseURL, cfg.APITimeout, cfg.UserAgent)
	}
	if cfg.UseBrowser {
		renderer, err := scraper.NewRodRenderer()
		if err != nil {
			slog.Error("initialising browser renderer", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := renderer.Close(); err != nil {
				slog.Error("close renderer", slog.Any("error", err))
			}
		}()
		deps.Renderer = renderer
	}

	s, err := scraper.NewScraper(cfg, deps)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	dataset, err := pipeline.NewDataset(cfg.DatasetDir)
	if err != nil {
		slog.Error("creating dataset", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, dataset, cfg)
	p.Start(cfg.Concurrency)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("collection failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := dataset.Close(); err != nil {
		slog.Error("close dataset", slog.Any("error", err))
	}
	if err := dataset.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.DatasetDir)
}

func splitURLs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printSummary(result *models.ScrapeResult, duration time.Duration, datasetDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Collection complete")

	fmt.Printf("  Item records:  %d\n", result.ItemCount)
	fmt.Printf("  Listing rows:  %d\n", result.RowCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Dataset dir:   %s\n", datasetDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
