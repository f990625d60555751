// Package scraper wires the colly crawl engine to the extraction pipeline:
// it classifies visited pages, routes them to the right extractor, applies
// the link-following policy, and keeps page fetches inside the run budget.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/bggwatch/bggwatch/bggapi"
	"github.com/bggwatch/bggwatch/classify"
	"github.com/bggwatch/bggwatch/config"
	"github.com/bggwatch/bggwatch/extract"
	"github.com/bggwatch/bggwatch/models"
	"github.com/bggwatch/bggwatch/pipeline"
	"github.com/bggwatch/bggwatch/reconcile"
)

// originHostKey carries the crawl-seed host through colly's request
// context so it reaches every page discovered transitively from that seed.
const originHostKey = "origin_host"

// Enricher fetches the structured API view of an item. A nil payload means
// no enrichment is available.
type Enricher interface {
	FetchThing(ctx context.Context, itemID string) (*bggapi.Payload, error)
}

// Deps are the collaborators injected into the scraper. Enricher and
// Renderer may be nil; Merger must be set.
type Deps struct {
	Enricher Enricher
	Merger   *reconcile.Merger
	Renderer Renderer
}

// Scraper owns the collector, the retry manager, and the per-run counters.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	deps      Deps
	Metrics   *Metrics

	scheduled int64
	requests  int64
	errors    int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config, deps Deps) (*Scraper, error) {
	if deps.Merger == nil {
		return nil, fmt.Errorf("merger is required")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		deps:         deps,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(s.visitWithOrigin, cfg, s.Metrics)
	return s, nil
}

// WithTransport swaps the HTTP transport; used by tests to install mocks.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Run seeds the crawl and blocks until every in-budget page has been
// handled. Records stream into p as pages are processed.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	seeded := 0
	for _, seed := range s.cfg.StartURLs {
		host := seedHost(seed)
		if host == "" {
			slog.Error("skipping seed without host", slog.String("url", seed))
			continue
		}
		if err := s.visitWithOrigin(seed, host); err != nil {
			slog.Error("seed visit failed", slog.String("url", seed), slog.Any("error", err))
			continue
		}
		seeded++
	}
	if seeded == 0 {
		return nil, fmt.Errorf("no seed URL could be visited")
	}

	s.collector.Wait()
	s.retry.Stop()

	result := &models.ScrapeResult{
		StartTime:    start,
		EndTime:      time.Now(),
		RequestCount: int(atomic.LoadInt64(&s.requests)),
		ErrorCount:   int(atomic.LoadInt64(&s.errors)),
		RetryCount:   s.retry.TotalRetries(),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
	}

	if metrics := p.GetMetrics(); metrics != nil {
		if items, ok := metrics["processed_items"].(int64); ok {
			result.ItemCount = int(items)
		}
		if rows, ok := metrics["processed_rows"].(int64); ok {
			result.RowCount = int(rows)
		}
	}

	return result, nil
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requests, 1)
			s.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("request progress",
					slog.Int64("requests", current),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if r.StatusCode >= http.StatusBadRequest {
				slog.Error("non-200 response",
					slog.Int("status", r.StatusCode),
					slog.String("url", r.Request.URL.String()),
				)
			}
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			s.maybeRender(ctx, r)
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errors, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			kind := classifyError(err, statusCode)

			s.mu.Lock()
			s.errorsByType[string(kind)]++
			s.mu.Unlock()

			url, origin := "", ""
			if r != nil && r.Request != nil {
				if r.Request.URL != nil {
					url = r.Request.URL.String()
				}
				origin = r.Request.Ctx.Get(originHostKey)
			}
			slog.Error("request error",
				slog.String("url", url),
				slog.String("category", string(kind)),
				slog.Any("error", requestError{kind: kind, err: err}),
			)
			s.Metrics.IncError(string(kind))

			if !s.retry.Schedule(url, origin) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, url)
				s.mu.Unlock()
			}
		})

		s.collector.OnHTML("html", func(e *colly.HTMLElement) {
			pageURL := e.Request.URL.String()
			switch classify.Page(pageURL) {
			case classify.ItemDetail:
				s.handleItem(ctx, e, p)
			default:
				s.handleListing(e, p)
			}
		})
	})
}

// handleItem extracts an item record, optionally enriches it from the XML
// API, reconciles the two views, and hands the result to the pipeline.
func (s *Scraper) handleItem(ctx context.Context, e *colly.HTMLElement, p *pipeline.Pipeline) {
	pageURL := e.Request.URL.String()
	rec := extract.Game(e.DOM, pageURL)
	s.Metrics.IncItems()

	var payload *bggapi.Payload
	if s.deps.Enricher != nil && rec.ExternalID != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.APITimeout)
		got, err := s.deps.Enricher.FetchThing(fetchCtx, rec.ExternalID)
		cancel()
		if err != nil || got == nil {
			s.Metrics.IncEnrichment("absent")
			slog.Debug("enrichment unavailable",
				slog.String("item_id", rec.ExternalID),
				slog.Any("reason", err),
			)
		} else {
			payload = got
			s.Metrics.IncEnrichment("hit")
		}
	}

	rec = s.deps.Merger.Merge(rec, payload)
	if err := p.ProcessItem(rec); err != nil && err != pipeline.ErrPipelineClosed {
		slog.Error("pipeline process error", slog.Any("error", err))
	}
}

// handleListing records per-row observations and enqueues same-origin item
// links discovered on the page.
func (s *Scraper) handleListing(e *colly.HTMLElement, p *pipeline.Pipeline) {
	pageURL := e.Request.URL.String()
	rows := extract.Rows(e.DOM, pageURL)
	s.Metrics.IncRows(len(rows))
	if err := p.ProcessRows(rows); err != nil && err != pipeline.ErrPipelineClosed {
		slog.Error("pipeline process error", slog.Any("error", err))
	}

	origin := e.Request.Ctx.Get(originHostKey)
	mode := classify.Unrestricted
	if s.cfg.FollowInternalOnly {
		mode = classify.SameOriginOnly
	}

	e.ForEach("a[href]", func(_ int, a *colly.HTMLElement) {
		abs := a.Request.AbsoluteURL(a.Attr("href"))
		if abs == "" {
			return
		}
		if !classify.ShouldFollow(abs, origin, mode) {
			return
		}
		if classify.Page(abs) != classify.ItemDetail {
			return
		}
		if !s.reserveVisit() {
			return
		}
		if err := a.Request.Visit(abs); err != nil {
			// Already-visited and similar scheduling refusals give
			// the budget slot back.
			s.releaseVisit()
		}
	})
}

// maybeRender swaps the response body for a browser-rendered version of the
// page. Only item-detail pages are rendered; listings parse fine as plain
// HTML. A render failure falls back to the raw body.
func (s *Scraper) maybeRender(ctx context.Context, r *colly.Response) {
	if s.deps.Renderer == nil {
		return
	}
	url := r.Request.URL.String()
	if classify.Page(url) != classify.ItemDetail {
		return
	}
	html, err := s.deps.Renderer.Render(ctx, url)
	if err != nil {
		slog.Warn("browser render failed, using raw body",
			slog.String("url", url),
			slog.Any("error", err),
		)
		return
	}
	r.Body = []byte(html)
}

// reserveVisit claims one slot of the whole-run page budget.
func (s *Scraper) reserveVisit() bool {
	for {
		n := atomic.LoadInt64(&s.scheduled)
		if n >= int64(s.cfg.MaxRequests) {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.scheduled, n, n+1) {
			return true
		}
	}
}

func (s *Scraper) releaseVisit() {
	atomic.AddInt64(&s.scheduled, -1)
}

// visitWithOrigin schedules a fetch carrying the fixed origin host for the
// seed the URL descends from. Used for seeds and retries, both of which
// start a fresh colly context.
func (s *Scraper) visitWithOrigin(url, originHost string) error {
	if !s.reserveVisit() {
		return fmt.Errorf("page budget exhausted")
	}
	cctx := colly.NewContext()
	cctx.Put(originHostKey, originHost)
	if err := s.collector.Request("GET", url, nil, cctx, nil); err != nil {
		s.releaseVisit()
		return err
	}
	return nil
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func seedHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
