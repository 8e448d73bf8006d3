package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder keeps counters in a private registry served at /metrics.
type PrometheusRecorder struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

// NewPrometheusRecorder registers the alpi_* collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpi_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpi_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpi_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		},
		[]string{"path", "method", "code"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpi_ticket_transitions_total",
			Help: "Lifecycle operations by transition and outcome",
		},
		[]string{"transition", "outcome"},
	)
	sideEffects := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpi_side_effect_failures_total",
			Help: "Post-commit side effects that failed and were skipped",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, latency, errs, transitions, sideEffects)

	return &PrometheusRecorder{
		registry:    registry,
		requests:    requests,
		latency:     latency,
		errors:      errs,
		transitions: transitions,
		sideEffects: sideEffects,
	}
}

func (p *PrometheusRecorder) RecordRequest(path, method string, status int, duration time.Duration) {
	p.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	p.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordError(path, method, code string) {
	p.errors.WithLabelValues(path, method, code).Inc()
}

func (p *PrometheusRecorder) RecordTransition(transition, outcome string) {
	p.transitions.WithLabelValues(transition, outcome).Inc()
}

func (p *PrometheusRecorder) RecordSideEffectFailure(kind string) {
	p.sideEffects.WithLabelValues(kind).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) Shutdown(context.Context) error { return nil }
