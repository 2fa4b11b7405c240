package metrics

import (
	"time"
)

// Recorder records domain measurements on a Collector. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	c Collector
}

// NewRecorder wraps c
func NewRecorder(c Collector) *Recorder {
	return &Recorder{c: c}
}

// NewStandardRecorder creates a Prometheus collector with the standard
// metrics registered
func NewStandardRecorder() (*Recorder, *PrometheusCollector, error) {
	c := NewPrometheusCollector()
	if err := c.RegisterStandardMetrics(); err != nil {
		return nil, nil, err
	}
	return NewRecorder(c), c, nil
}

// Citations counts resolved and unresolved markers of one source kind
func (r *Recorder) Citations(kind string, resolved, unresolved int) {
	if r == nil {
		return
	}
	if resolved > 0 {
		r.c.AddCounter(CitationsTotal.Name, float64(resolved), Labels("kind", kind, "outcome", "resolved"))
	}
	if unresolved > 0 {
		r.c.AddCounter(CitationsTotal.Name, float64(unresolved), Labels("kind", kind, "outcome", "unresolved"))
	}
}

// Search records one search call. sourceErrors lists sources that reported
// partial failures inside a successful response.
func (r *Recorder) Search(start time.Time, err error, sourceErrors ...string) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		r.c.IncrementCounter(SearchErrors.Name, Labels("source", "request"))
	}
	r.c.ObserveDuration(SearchDuration.Name, start, Labels("status", status))
	for _, src := range sourceErrors {
		r.c.IncrementCounter(SearchErrors.Name, Labels("source", src))
	}
}

// ObserveCache records a cache lookup; it satisfies search.CacheObserver
func (r *Recorder) ObserveCache(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.c.IncrementCounter(CacheRequests.Name, Labels("kind", kind, "result", result))
}

// DocumentFetch records the outcome of a document fetch
func (r *Recorder) DocumentFetch(outcome string) {
	if r == nil {
		return
	}
	r.c.IncrementCounter(DocumentFetches.Name, Labels("outcome", outcome))
}

// StaleDropped counts a superseded document response
func (r *Recorder) StaleDropped() {
	if r == nil {
		return
	}
	r.c.IncrementCounter(StaleDocumentsDropped.Name, Labels())
}

// OpenTabs sets the open tab gauge for a session
func (r *Recorder) OpenTabs(sessionID string, n int) {
	if r == nil {
		return
	}
	r.c.SetGauge(OpenTabs.Name, float64(n), Labels("session_id", sessionID))
}

// Answer records the time taken to stream an answer
func (r *Recorder) Answer(provider string, start time.Time, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.c.ObserveDuration(AnswerDuration.Name, start, Labels("provider", provider, "status", status))
}
