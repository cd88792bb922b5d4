// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Gateway metrics
	GatewayQueueDepth prometheus.GaugeFunc
	GatewayInflight   prometheus.GaugeFunc
	GatewayStarted    prometheus.CounterFunc

	// Upstream metrics
	UpstreamCalls       *prometheus.CounterVec
	UpstreamCallLatency *prometheus.HistogramVec

	// History metrics
	HistoryResolutions *prometheus.CounterVec

	// Request metrics
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec
}

// GatewayStats exposes the gateway counters the gauges read from.
type GatewayStats interface {
	QueueDepth() int
	Inflight() int64
	Started() int64
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string, gw GatewayStats) *Metrics {
	if namespace == "" {
		namespace = "alephium_gateway"
	}

	return &Metrics{
		// Cache metrics
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by cache name",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by cache name",
		}, []string{"cache"}),

		// Gateway metrics
		GatewayQueueDepth: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "queue_depth",
			Help:      "Number of tasks waiting in the gateway queue",
		}, func() float64 { return float64(gw.QueueDepth()) }),
		GatewayInflight: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "inflight",
			Help:      "Number of upstream operations currently running",
		}, func() float64 { return float64(gw.Inflight()) }),
		GatewayStarted: promauto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "operations_started_total",
			Help:      "Total number of upstream operations started",
		}, func() float64 { return float64(gw.Started()) }),

		// Upstream metrics
		UpstreamCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total number of upstream calls by endpoint and status",
		}, []string{"endpoint", "status"}),
		UpstreamCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Upstream call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// History metrics
		HistoryResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "resolutions_total",
			Help:      "Total number of balance history resolutions by source",
		}, []string{"source"}),

		// Request metrics
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RequestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "Total number of HTTP request errors by route and kind",
		}, []string{"route", "kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit increments the hit counter for a cache.
func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss increments the miss counter for a cache.
func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordUpstreamCall records one upstream call outcome.
func (m *Metrics) RecordUpstreamCall(endpoint, status string, seconds float64) {
	m.UpstreamCalls.WithLabelValues(endpoint, status).Inc()
	m.UpstreamCallLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordHistoryResolution records which source resolved a history request.
func (m *Metrics) RecordHistoryResolution(source string) {
	m.HistoryResolutions.WithLabelValues(source).Inc()
}

// RecordRequest records one HTTP request.
func (m *Metrics) RecordRequest(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordRequestError records one failed HTTP request.
func (m *Metrics) RecordRequestError(route, kind string) {
	m.RequestErrors.WithLabelValues(route, kind).Inc()
}
