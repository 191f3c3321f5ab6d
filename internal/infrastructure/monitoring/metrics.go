package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the extension runtime
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Extension lifecycle metrics
	ExtensionsInstalled  prometheus.Gauge
	ExtensionsEnabled    prometheus.Gauge
	LifecycleTransitions *prometheus.CounterVec

	// Hook metrics
	HookDispatches      *prometheus.CounterVec
	HookHandlerFailures *prometheus.CounterVec

	// Permission metrics
	PermissionDenials prometheus.Counter

	// Store metrics
	StoreQueries       *prometheus.CounterVec
	StoreQueryDuration *prometheus.HistogramVec
	StoreInstalls      prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcadia_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arcadia_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ExtensionsInstalled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcadia_extensions_installed",
				Help: "Number of installed extensions",
			},
		),
		ExtensionsEnabled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcadia_extensions_enabled",
				Help: "Number of enabled extensions",
			},
		),
		LifecycleTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcadia_extension_transitions_total",
				Help: "Total number of extension lifecycle transitions",
			},
			[]string{"state"},
		),

		HookDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcadia_hook_dispatches_total",
				Help: "Total number of hook dispatches",
			},
			[]string{"hook"},
		),
		HookHandlerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcadia_hook_handler_failures_total",
				Help: "Total number of per-handler hook failures",
			},
			[]string{"hook"},
		),

		PermissionDenials: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arcadia_permission_denials_total",
				Help: "Total number of denied authorization checks",
			},
		),

		StoreQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcadia_store_queries_total",
				Help: "Total number of store source fetches",
			},
			[]string{"source", "status"},
		),
		StoreQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arcadia_store_query_duration_seconds",
				Help:    "Store source fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		StoreInstalls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arcadia_store_installs_total",
				Help: "Total number of installs initiated from the store",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcadia_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
	}
}

// Handler exposes the metrics registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTransition records one lifecycle state transition
func (m *Metrics) RecordTransition(state string) {
	m.LifecycleTransitions.WithLabelValues(state).Inc()
}

// SetExtensionCounts updates the installed/enabled gauges
func (m *Metrics) SetExtensionCounts(installed, enabled int) {
	m.ExtensionsInstalled.Set(float64(installed))
	m.ExtensionsEnabled.Set(float64(enabled))
}

// RecordHookDispatch records a dispatch and its per-handler failures
func (m *Metrics) RecordHookDispatch(hook string, failures int) {
	m.HookDispatches.WithLabelValues(hook).Inc()
	if failures > 0 {
		m.HookHandlerFailures.WithLabelValues(hook).Add(float64(failures))
	}
}

// RecordStoreQuery records one source fetch
func (m *Metrics) RecordStoreQuery(source, status string, duration time.Duration) {
	m.StoreQueries.WithLabelValues(source, status).Inc()
	m.StoreQueryDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordStoreInstall records an install initiated from the store
func (m *Metrics) RecordStoreInstall() {
	m.StoreInstalls.Inc()
}
