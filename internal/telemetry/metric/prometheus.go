package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokpool"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Batch runner metrics
	RunsTotal       prometheus.Counter
	WindowsTotal    prometheus.Counter
	TuplesTotal     *prometheus.CounterVec
	SinkFailures    prometheus.Counter
	RunDuration     prometheus.Histogram
	ExchangeRetries prometheus.Counter

	// Token store metrics
	StoreInserts    *prometheus.CounterVec
	StoreTokens     prometheus.Gauge
	StoreExpired    prometheus.Counter
	StoreRecoveries *prometheus.CounterVec
	StoreErrors     prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all metrics registered,
// plus the Go runtime, process and build info collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Completed batch runs",
		}),
		WindowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "windows_total",
			Help:      "Processed batch windows",
		}),
		TuplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "tuples_total",
			Help:      "Credential tuples by result (succeeded, exchange_failed, malformed)",
		}, []string{"result"}),
		SinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "sink_failures_total",
			Help:      "Tokens the sink refused",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ExchangeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "exchange_retries_total",
			Help:      "Exchange attempts retried after upstream rate limiting",
		}),

		StoreInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "inserts_total",
			Help:      "Token inserts by outcome",
		}, []string{"outcome"}),
		StoreTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tokens",
			Help:      "Unexpired tokens after the last store operation",
		}),
		StoreExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "expired_removed_total",
			Help:      "Expired records removed from the store",
		}),
		StoreRecoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "corrupt_recoveries_total",
			Help:      "Corrupt store documents by recovery result (recovered, reset)",
		}, []string{"result"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Store operations that failed with a persistence error",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewBuildInfoCollector(),
		r.RunsTotal,
		r.WindowsTotal,
		r.TuplesTotal,
		r.SinkFailures,
		r.RunDuration,
		r.ExchangeRetries,
		r.StoreInserts,
		r.StoreTokens,
		r.StoreExpired,
		r.StoreRecoveries,
		r.StoreErrors,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Prometheus returns the underlying registry for components that register
// their own collectors (e.g. the badger backend).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns a process-wide registry, created on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// ObserveWindow records one processed window.
func (r *Registry) ObserveWindow() {
	if r == nil {
		return
	}
	r.WindowsTotal.Inc()
}

// ObserveTuple records one tuple result.
func (r *Registry) ObserveTuple(result string) {
	if r == nil {
		return
	}
	r.TuplesTotal.WithLabelValues(result).Inc()
}

// ObserveSinkFailure records one sink failure.
func (r *Registry) ObserveSinkFailure() {
	if r == nil {
		return
	}
	r.SinkFailures.Inc()
}

// ObserveRun records a completed run and its duration in seconds.
func (r *Registry) ObserveRun(seconds float64) {
	if r == nil {
		return
	}
	r.RunsTotal.Inc()
	r.RunDuration.Observe(seconds)
}

// ObserveRetry records one rate-limit retry.
func (r *Registry) ObserveRetry() {
	if r == nil {
		return
	}
	r.ExchangeRetries.Inc()
}

// ObserveInsert records an insert outcome.
func (r *Registry) ObserveInsert(outcome string) {
	if r == nil {
		return
	}
	r.StoreInserts.WithLabelValues(outcome).Inc()
}

// SetStoreSize records the number of unexpired tokens.
func (r *Registry) SetStoreSize(n int) {
	if r == nil {
		return
	}
	r.StoreTokens.Set(float64(n))
}

// ObserveExpired records expired records removed.
func (r *Registry) ObserveExpired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.StoreExpired.Add(float64(n))
}

// ObserveRecovery records a corrupt document recovery result.
func (r *Registry) ObserveRecovery(result string) {
	if r == nil {
		return
	}
	r.StoreRecoveries.WithLabelValues(result).Inc()
}

// ObserveStoreError records a persistence failure.
func (r *Registry) ObserveStoreError() {
	if r == nil {
		return
	}
	r.StoreErrors.Inc()
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, route, status string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
