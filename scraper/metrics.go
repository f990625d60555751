package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the collector run.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ItemsTotal      prometheus.Counter
	RowsTotal       prometheus.Counter
	EnrichmentTotal *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bggwatch_requests_total",
			Help: "Total page requests issued by the collector.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bggwatch_request_duration_seconds",
			Help:    "Page request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bggwatch_items_extracted_total",
			Help: "Total item records sent to the pipeline.",
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bggwatch_listing_rows_total",
			Help: "Total listing rows sent to the pipeline.",
		},
	)
	enrichment := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bggwatch_enrichment_total",
			Help: "XML API enrichment attempts by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bggwatch_retries_total",
			Help: "Total page retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bggwatch_errors_total",
			Help: "Total request errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, items, rows, enrichment, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		RowsTotal:       rows,
		EnrichmentTotal: enrichment,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a page request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the extracted items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsTotal.Inc()
}

// IncRows adds extracted listing rows.
func (m *Metrics) IncRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsTotal.Add(float64(n))
}

// IncEnrichment counts one enrichment attempt by outcome.
func (m *Metrics) IncEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.EnrichmentTotal.WithLabelValues(outcome).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
