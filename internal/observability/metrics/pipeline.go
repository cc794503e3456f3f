package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts conversions, index rebuilds, questions and resets
// whichever surface triggered them.
type PipelineMetrics struct {
	service string

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationInFlight *prometheus.GaugeVec
	retrievalTotal    *prometheus.CounterVec
	retrievedChunks   prometheus.Histogram
	indexedChunks     prometheus.Gauge
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookqa",
			Subsystem: "pipeline",
			Name:      "operations_total",
			Help:      "Total pipeline operations by status.",
		},
		[]string{"service", "operation", "status"},
	)
	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookqa",
			Subsystem: "pipeline",
			Name:      "operation_duration_seconds",
			Help:      "Pipeline operation duration in seconds by status.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "operation", "status"},
	)
	operationInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bookqa",
			Subsystem: "pipeline",
			Name:      "operations_in_flight",
			Help:      "Number of running pipeline operations.",
		},
		[]string{"service", "operation"},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookqa",
			Subsystem: "rag",
			Name:      "retrieval_total",
			Help:      "Total answered questions by retrieval outcome.",
		},
		[]string{"service", "outcome"},
	)
	retrievedChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "bookqa",
			Subsystem:   "rag",
			Name:        "retrieved_chunks",
			Help:        "Distribution of chunks used as context per answered question.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	indexedChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "bookqa",
			Subsystem:   "index",
			Name:        "chunks",
			Help:        "Chunks held by the current index generation.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registerer.MustRegister(
		operationsTotal,
		operationDuration,
		operationInFlight,
		retrievalTotal,
		retrievedChunks,
		indexedChunks,
	)

	return &PipelineMetrics{
		service:           service,
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		operationInFlight: operationInFlight,
		retrievalTotal:    retrievalTotal,
		retrievedChunks:   retrievedChunks,
		indexedChunks:     indexedChunks,
	}
}

// Track marks operation as running and returns the function that records its
// outcome.
func (m *PipelineMetrics) Track(operation string) func(err error) {
	start := time.Now()
	inFlight := m.operationInFlight.WithLabelValues(m.service, operation)
	inFlight.Inc()
	return func(err error) {
		inFlight.Dec()
		status := "success"
		if err != nil {
			status = "error"
		}
		m.operationsTotal.WithLabelValues(m.service, operation, status).Inc()
		m.operationDuration.WithLabelValues(m.service, operation, status).Observe(time.Since(start).Seconds())
	}
}

func (m *PipelineMetrics) RecordRetrieval(matched bool, chunks int) {
	outcome := "no_match"
	if matched {
		outcome = "matched"
	}
	m.retrievalTotal.WithLabelValues(m.service, outcome).Inc()
	m.retrievedChunks.Observe(float64(chunks))
}

func (m *PipelineMetrics) SetIndexedChunks(n int) {
	m.indexedChunks.Set(float64(n))
}
