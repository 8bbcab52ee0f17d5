package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.UpstreamRequest("A", "ok")
	m.UpstreamRequest("A", "ok")
	m.UpstreamRequest("A", "timeout")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("A", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("A", "timeout")))

	m.CacheReload("catalog", 42, nil)
	m.CacheReload("catalog", 0, errors.New("boom"))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.catalogItems.WithLabelValues("catalog")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheReloads.WithLabelValues("catalog", "error")))

	m.CollectRun(time.Second, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collectRuns.WithLabelValues("ok")))

	m.Search(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches))
}

func TestNilMetricsDiscards(t *testing.T) {
	var m *Metrics
	m.UpstreamRequest("A", "ok")
	m.CollectedPage("A")
	m.CollectRun(time.Second, nil)
	m.CacheReload("catalog", 1, nil)
	m.Search(1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.CollectedPage("A")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `vodstation_collector_pages_total{source="A"} 1`))
}
