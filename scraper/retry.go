package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bggwatch/bggwatch/config"
)

// visitFunc re-schedules a page fetch carrying its seed's origin host.
type visitFunc func(url, originHost string) error

// retryManager re-schedules failed page fetches with exponential backoff.
// The origin host travels with each entry so a retried page keeps the link
// policy of the seed it descends from.
type retryManager struct {
	visit   visitFunc
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	attempts     map[string]int
	origins      map[string]string
	timers       map[string]*time.Timer
	totalRetries int
	stopped      bool
}

func newRetryManager(visit visitFunc, cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		visit:    visit,
		cfg:      cfg,
		metrics:  metrics,
		ctx:      context.Background(),
		attempts: make(map[string]int),
		origins:  make(map[string]string),
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule queues url for a delayed retry. It reports false when the URL
// has exhausted its attempts or the manager is stopping, in which case the
// caller records the URL as permanently failed.
func (rm *retryManager) Schedule(url, originHost string) bool {
	if rm.cfg.MaxRetries == 0 || url == "" {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return false
	}
	if rm.ctx != nil && rm.ctx.Err() != nil {
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.origins[url] = originHost
	rm.totalRetries++
	rm.metrics.IncRetries()

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(url)
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url)
	})
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(url string) {
	if timer, ok := rm.timers[url]; ok {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) fireRetry(url string) {
	rm.mu.Lock()
	if rm.stopped {
		rm.mu.Unlock()
		return
	}
	ctx := rm.ctx
	origin := rm.origins[url]
	rm.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if err := rm.visit(url, origin); err != nil {
		slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
	}

	rm.mu.Lock()
	delete(rm.timers, url)
	rm.mu.Unlock()
}

// Stop cancels pending retries.
func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		timer.Stop()
		delete(rm.timers, url)
	}
}

// TotalRetries reports how many retries were scheduled over the run.
func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

// SetContext attaches the run context so pending retries stop firing after
// cancellation.
func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	rm.ctx = ctx
}
