// Package metrics exposes session and upstream measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"
)

// Collector interface for metrics collection
type Collector interface {
	// Counters
	IncrementCounter(name string, labels map[string]string)
	AddCounter(name string, value float64, labels map[string]string)

	// Gauges
	SetGauge(name string, value float64, labels map[string]string)

	// Histograms
	ObserveHistogram(name string, value float64, labels map[string]string)
	ObserveDuration(name string, start time.Time, labels map[string]string)

	// Registry
	Register(metric Metric) error

	// HTTP handler for scraping
	Handler() http.Handler
}

// Metric represents a metric definition
type Metric struct {
	Name    string
	Type    MetricType
	Help    string
	Labels  []string
	Buckets []float64 // For histograms
}

// MetricType represents the type of metric
type MetricType string

const (
	CounterType   MetricType = "counter"
	GaugeType     MetricType = "gauge"
	HistogramType MetricType = "histogram"
)

// Standard bunko metrics
var (
	// Citation metrics
	CitationsTotal = Metric{
		Name:   "bunko_citations_total",
		Type:   CounterType,
		Help:   "Citation markers seen in answers, by source kind and outcome",
		Labels: []string{"kind", "outcome"},
	}

	// Search metrics
	SearchDuration = Metric{
		Name:    "bunko_search_duration_seconds",
		Type:    HistogramType,
		Help:    "Archive search latency in seconds",
		Labels:  []string{"status"},
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}

	SearchErrors = Metric{
		Name:   "bunko_search_errors_total",
		Type:   CounterType,
		Help:   "Search failures, including per-source errors in otherwise successful responses",
		Labels: []string{"source"},
	}

	CacheRequests = Metric{
		Name:   "bunko_cache_requests_total",
		Type:   CounterType,
		Help:   "Search cache lookups",
		Labels: []string{"kind", "result"},
	}

	// Document metrics
	DocumentFetches = Metric{
		Name:   "bunko_document_fetches_total",
		Type:   CounterType,
		Help:   "Document text fetches by outcome",
		Labels: []string{"outcome"},
	}

	StaleDocumentsDropped = Metric{
		Name:   "bunko_stale_documents_dropped_total",
		Type:   CounterType,
		Help:   "Document responses discarded because a newer request superseded them",
		Labels: []string{},
	}

	// Viewer metrics
	OpenTabs = Metric{
		Name:   "bunko_open_tabs",
		Type:   GaugeType,
		Help:   "Number of open viewer tabs",
		Labels: []string{"session_id"},
	}

	// Inference metrics
	AnswerDuration = Metric{
		Name:    "bunko_answer_duration_seconds",
		Type:    HistogramType,
		Help:    "Time to stream a complete answer",
		Labels:  []string{"provider", "status"},
		Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80},
	}
)

// Labels creates a labels map from key-value pairs
func Labels(kvs ...string) map[string]string {
	labels := make(map[string]string)
	for i := 0; i < len(kvs)-1; i += 2 {
		labels[kvs[i]] = kvs[i+1]
	}
	return labels
}
