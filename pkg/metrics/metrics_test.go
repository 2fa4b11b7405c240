package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, *PrometheusCollector) {
	t.Helper()
	r, c, err := NewStandardRecorder()
	require.NoError(t, err)
	return r, c
}

func TestPrometheusCollector(t *testing.T) {
	t.Run("Duplicate Register", func(t *testing.T) {
		c := NewPrometheusCollector()
		require.NoError(t, c.Register(CitationsTotal))
		assert.Error(t, c.Register(CitationsTotal))
	})

	t.Run("Unknown Type", func(t *testing.T) {
		c := NewPrometheusCollector()
		assert.Error(t, c.Register(Metric{Name: "x", Type: "summary"}))
	})

	t.Run("Unregistered Names Are Ignored", func(t *testing.T) {
		c := NewPrometheusCollector()
		c.IncrementCounter("missing", nil)
		c.SetGauge("missing", 1, nil)
		c.ObserveHistogram("missing", 1, nil)
	})

	t.Run("Standard Metrics", func(t *testing.T) {
		_, c := newTestRecorder(t)
		assert.Contains(t, c.GetMetricNames(), "bunko_citations_total")
		assert.Len(t, c.GetMetricNames(), 8)
	})
}

func TestRecorder(t *testing.T) {
	t.Run("Citations", func(t *testing.T) {
		r, c := newTestRecorder(t)
		r.Citations("archive", 2, 1)
		r.Citations("web", 0, 3)

		counter := c.counters[CitationsTotal.Name]
		assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues("archive", "resolved")))
		assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("archive", "unresolved")))
		assert.Equal(t, 3.0, testutil.ToFloat64(counter.WithLabelValues("web", "unresolved")))
	})

	t.Run("Search", func(t *testing.T) {
		r, c := newTestRecorder(t)
		r.Search(time.Now(), nil, "web")
		r.Search(time.Now(), errors.New("boom"))

		errs := c.counters[SearchErrors.Name]
		assert.Equal(t, 1.0, testutil.ToFloat64(errs.WithLabelValues("web")))
		assert.Equal(t, 1.0, testutil.ToFloat64(errs.WithLabelValues("request")))
		assert.Equal(t, 2, testutil.CollectAndCount(c.histograms[SearchDuration.Name]))
	})

	t.Run("Cache And Documents", func(t *testing.T) {
		r, c := newTestRecorder(t)
		r.ObserveCache("search", true)
		r.ObserveCache("search", false)
		r.ObserveCache("search", false)
		r.StaleDropped()
		r.DocumentFetch("ok")
		r.OpenTabs("s1", 3)

		cache := c.counters[CacheRequests.Name]
		assert.Equal(t, 1.0, testutil.ToFloat64(cache.WithLabelValues("search", "hit")))
		assert.Equal(t, 2.0, testutil.ToFloat64(cache.WithLabelValues("search", "miss")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.counters[StaleDocumentsDropped.Name].WithLabelValues()))
		assert.Equal(t, 3.0, testutil.ToFloat64(c.gauges[OpenTabs.Name].WithLabelValues("s1")))
	})

	t.Run("Nil Recorder", func(t *testing.T) {
		var r *Recorder
		r.Citations("archive", 1, 1)
		r.Search(time.Now(), nil)
		r.ObserveCache("search", true)
		r.StaleDropped()
		r.OpenTabs("s", 1)
		r.Answer("ollama", time.Now(), nil)
	})

	t.Run("Handler Exposes Metrics", func(t *testing.T) {
		r, c := newTestRecorder(t)
		r.Citations("archive", 1, 0)

		srv := httptest.NewServer(c.Handler())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `bunko_citations_total{kind="archive",outcome="resolved"} 1`)
	})
}
