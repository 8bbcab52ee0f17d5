// Package metrics holds the process's Prometheus series on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vodstation"

// Metrics is safe for concurrent use. A nil *Metrics discards observations.
type Metrics struct {
	reg *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	collectedPages   *prometheus.CounterVec
	collectRuns      *prometheus.CounterVec
	collectDuration  prometheus.Histogram
	cacheReloads     *prometheus.CounterVec
	catalogItems     *prometheus.GaugeVec
	searches         prometheus.Counter
	searchResults    prometheus.Histogram
}

// New registers every series plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upstream_requests_total",
			Help: "Upstream page requests by source and result.",
		}, []string{"source", "result"}),
		collectedPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_pages_total",
			Help: "Pages fetched by the collector, by source.",
		}, []string{"source"}),
		collectRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_runs_total",
			Help: "Collector runs by outcome.",
		}, []string{"outcome"}),
		collectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "collector_run_seconds",
			Help:    "Wall time of collector runs.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		cacheReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_reloads_total",
			Help: "Catalog cache reloads by document and result.",
		}, []string{"document", "result"}),
		catalogItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "catalog_items",
			Help: "Items in the loaded snapshot, by document.",
		}, []string{"document"}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "searches_total",
			Help: "Non-empty live searches.",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_results",
			Help:    "Merged result count per live search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(
		m.upstreamRequests, m.collectedPages, m.collectRuns, m.collectDuration,
		m.cacheReloads, m.catalogItems, m.searches, m.searchResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) UpstreamRequest(source, result string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(source, result).Inc()
}

func (m *Metrics) CollectedPage(source string) {
	if m == nil {
		return
	}
	m.collectedPages.WithLabelValues(source).Inc()
}

// CollectRun records one finished collector run.
func (m *Metrics) CollectRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.collectRuns.WithLabelValues(outcome).Inc()
	m.collectDuration.Observe(d.Seconds())
}

// CacheReload records a reload attempt of document and, on success, its size.
func (m *Metrics) CacheReload(document string, items int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cacheReloads.WithLabelValues(document, "error").Inc()
		return
	}
	m.cacheReloads.WithLabelValues(document, "ok").Inc()
	m.catalogItems.WithLabelValues(document).Set(float64(items))
}

func (m *Metrics) Search(results int) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.searchResults.Observe(float64(results))
}
