package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "authgate"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	authRejections   *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	tokensIssued     *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by route, method and error code.",
		}, []string{"path", "method", "code"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Protected requests rejected by the gate, by reason code.",
		}, []string{"code"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_upstream_failures_total",
			Help:      "Failed calls to identity or blocklist stores.",
		}, []string{"dependency"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_tokens_issued_total",
			Help:      "Credentials issued by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.authRejections,
		m.upstreamFailures,
		m.tokensIssued,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordRejection counts a gate rejection.
func (m *Metrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.authRejections.WithLabelValues(code).Inc()
}

// RecordUpstreamFailure counts an unreachable dependency separately from auth failures.
func (m *Metrics) RecordUpstreamFailure(dependency string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(dependency).Inc()
}

// RecordIssued counts an issued credential.
func (m *Metrics) RecordIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}
