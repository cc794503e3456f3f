package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute labels requests that no registered route handled.
const UnmatchedRoute = "other"

// HTTPServerMetrics owns the registry served on /metrics. Request metrics are
// labelled by route pattern, never by raw path.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookqa",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"service", "route", "method", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookqa",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route. Conversion and indexing dominate the upper buckets.",
		Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 30, 120, 600},
	}, []string{"service", "route", "method"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "bookqa",
		Subsystem:   "http",
		Name:        "in_flight_requests",
		Help:        "HTTP requests currently being served.",
		ConstLabels: prometheus.Labels{"service": service},
	})

	registry.MustRegister(requests, duration, inFlight)

	return &HTTPServerMetrics{
		service:  service,
		registry: registry,
		pipeline: NewPipelineMetrics(service, registry),
		requests: requests,
		duration: duration,
		inFlight: inFlight,
	}
}

// Pipeline returns the pipeline metrics exposed on the same registry.
func (m *HTTPServerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Route instruments next under the given route label.
func (m *HTTPServerMetrics) Route(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"service": m.service, "route": route}
	next = promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels), next)
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), next)
}

// InFlight tracks concurrently served requests across all routes.
func (m *HTTPServerMetrics) InFlight(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.inFlight, next)
}
