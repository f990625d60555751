// Package pipeline coordinates validation, de-duplication and persistence
// of extracted records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bggwatch/bggwatch/config"
	"github.com/bggwatch/bggwatch/models"
)

// ErrPipelineClosed is returned when a Process call arrives after shutdown.
var ErrPipelineClosed = errors.New("pipeline: closed")

// record is the single envelope flowing through the worker channel; exactly
// one of the two fields is set.
type record struct {
	item *models.ItemRecord
	row  *models.ListingRow
}

// Pipeline fans extracted records out to worker goroutines that batch them
// into the sink. Persistence failures surface through Err but never reach
// the page handlers that produced the records.
type Pipeline struct {
	ctx       context.Context
	sink      Sink
	recordCh  chan record
	batchSize int

	wg sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	metrics counters

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to sink, buffered and batched per
// cfg.
func NewPipeline(ctx context.Context, sink Sink, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		// Only reachable with a non-positive size, which Validate rejects.
		seen, _ = lru.New[string, struct{}](1)
	}
	return &Pipeline{
		ctx:       ctx,
		sink:      sink,
		recordCh:  make(chan record, cfg.PipelineBufferSize),
		batchSize: cfg.BatchSize,
		seen:      seen,
		metrics:   newCounters(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// ProcessItem enqueues one item record.
func (p *Pipeline) ProcessItem(item *models.ItemRecord) error {
	if item == nil {
		return nil
	}
	return p.submit(record{item: item})
}

// ProcessRows enqueues listing rows.
func (p *Pipeline) ProcessRows(rows []*models.ListingRow) error {
	for _, row := range rows {
		if row == nil {
			continue
		}
		if err := p.submit(record{row: row}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) submit(rec record) error {
	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}
	return p.enqueue(rec)
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	p.wg.Wait()
	return p.Err()
}

// Err returns the first persistence error encountered.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until shutdown.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Any("items", m["processed_items"]),
					slog.Any("rows", m["processed_rows"]),
					slog.Any("validation_errors", m["validation_errors"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	items := make([]*models.ItemRecord, 0, p.batchSize)
	rows := make([]*models.ListingRow, 0, p.batchSize)

	flush := func() error {
		if len(items) > 0 {
			if err := p.sink.WriteItems(items); err != nil {
				return fmt.Errorf("write items: %w", err)
			}
			items = items[:0]
		}
		if len(rows) > 0 {
			if err := p.sink.WriteRows(rows); err != nil {
				return fmt.Errorf("write rows: %w", err)
			}
			rows = rows[:0]
		}
		return nil
	}

	for rec := range p.recordCh {
		switch {
		case rec.item != nil:
			item := p.prepareItem(rec.item)
			if item == nil {
				continue
			}
			items = append(items, item)
		case rec.row != nil:
			if !p.validRow(rec.row) {
				continue
			}
			rows = append(rows, rec.row)
		}
		if len(items)+len(rows) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(err)
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(err)
	}
}

func (p *Pipeline) prepareItem(item *models.ItemRecord) *models.ItemRecord {
	if item.Name == "" {
		p.metrics.addValidation("invalid_record")
		return nil
	}

	// A bounded seen-set: re-extractions of a page already processed in
	// this run are dropped. Listing rows are deliberately not deduplicated;
	// each one is a standalone observation.
	if item.SourceURL != "" {
		if _, dup := p.seen.Get(item.SourceURL); dup {
			p.metrics.addValidation("duplicate_url")
			return nil
		}
		p.seen.Add(item.SourceURL, struct{}{})
	}

	p.metrics.incItems()
	return item
}

func (p *Pipeline) validRow(row *models.ListingRow) bool {
	if row.AbsoluteURL == "" {
		p.metrics.addValidation("invalid_row")
		return false
	}
	p.metrics.incRows()
	return true
}

func (p *Pipeline) enqueue(rec record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.ctx.Done():
		return ErrPipelineClosed
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.recordCh <- rec:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type counters struct {
	mu         sync.Mutex
	items      int64
	rows       int64
	validation map[string]int
}

func newCounters() counters {
	return counters{
		validation: make(map[string]int),
	}
}

func (c *counters) incItems() {
	c.mu.Lock()
	c.items++
	c.mu.Unlock()
}

func (c *counters) incRows() {
	c.mu.Lock()
	c.rows++
	c.mu.Unlock()
}

func (c *counters) addValidation(kind string) {
	c.mu.Lock()
	c.validation[kind]++
	c.mu.Unlock()
}

func (c *counters) snapshot() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	validation := make(map[string]int, len(c.validation))
	for k, v := range c.validation {
		validation[k] = v
	}

	return map[string]interface{}{
		"processed_items":   c.items,
		"processed_rows":    c.rows,
		"validation_errors": validation,
	}
}
