package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape run.
type Metrics struct {
	Registry              *prometheus.Registry
	PagesTotal            prometheus.Counter
	PageDuration          prometheus.Histogram
	RecordsExtractedTotal prometheus.Counter
	RecordsKeptTotal      prometheus.Counter
	DuplicatesTotal       prometheus.Counter
	RetriesTotal          prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_processed_total",
			Help: "Total pages processed end to end.",
		},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_page_duration_seconds",
			Help:    "Time spent processing one page, navigation through dedup.",
			Buckets: prometheus.DefBuckets,
		},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_extracted_total",
			Help: "Raw records produced by the extractor.",
		},
	)
	kept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_kept_total",
			Help: "Records kept after dedup.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_duplicates_total",
			Help: "Records dropped as identity-key duplicates.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(pages, pageDuration, extracted, kept, duplicates, retries, errorsTotal)

	return &Metrics{
		Registry:              registry,
		PagesTotal:            pages,
		PageDuration:          pageDuration,
		RecordsExtractedTotal: extracted,
		RecordsKeptTotal:      kept,
		DuplicatesTotal:       duplicates,
		RetriesTotal:          retries,
		ErrorsTotal:           errorsTotal,
	}
}

// IncPage increments the processed-pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// ObservePageDuration records one page's processing time.
func (m *Metrics) ObservePageDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(d.Seconds())
}

// IncExtracted increments the raw-records counter.
func (m *Metrics) IncExtracted() {
	if m == nil {
		return
	}
	m.RecordsExtractedTotal.Inc()
}

// IncKept increments the kept-records counter.
func (m *Metrics) IncKept() {
	if m == nil {
		return
	}
	m.RecordsKeptTotal.Inc()
}

// IncDuplicate increments the dedup-drop counter.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
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
