package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal        *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	generationTotal     *prometheus.CounterVec
	generationDuration  *prometheus.HistogramVec
	rateLimitRejections *prometheus.CounterVec
	extractionFailures  prometheus.Counter
	auditDropped        prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cv_review",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cv_review",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cv_review",
				Subsystem: "generation",
				Name:      "calls_total",
				Help:      "Generation calls by feature and outcome.",
			},
			[]string{"feature", "outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cv_review",
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Time spent waiting on the generation service.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"feature"},
		),
		rateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cv_review",
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"policy"},
		),
		extractionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cv_review",
				Subsystem: "extraction",
				Name:      "failures_total",
				Help:      "Documents that yielded no usable text.",
			},
		),
		auditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cv_review",
				Subsystem: "audit",
				Name:      "dropped_total",
				Help:      "Audit records dropped because the queue was full.",
			},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.generationTotal,
		m.generationDuration,
		m.rateLimitRejections,
		m.extractionFailures,
		m.auditDropped,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ObserveGeneration(feature, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(feature, outcome).Inc()
	m.generationDuration.WithLabelValues(feature).Observe(d.Seconds())
}

func (m *Metrics) IncRateLimitRejection(policy string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(policy).Inc()
}

func (m *Metrics) IncExtractionFailure() {
	if m == nil {
		return
	}
	m.extractionFailures.Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
