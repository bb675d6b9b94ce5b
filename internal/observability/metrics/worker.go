package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	documentsActive  prometheus.Gauge
	chunksIndexed    *prometheus.CounterVec
	queueLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "worker",
			Name:      "document_duration_seconds",
			Help:      "Document processing duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	documentsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docuchat",
			Subsystem: "worker",
			Name:      "documents_in_progress",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "worker",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks written to the vector and lexical indexes.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and the start of processing.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		documentsTotal,
		documentDuration,
		documentsActive,
		chunksIndexed,
		queueLag,
	)

	return &WorkerMetrics{
		registry:         registry,
		documentsTotal:   documentsTotal,
		documentDuration: documentDuration,
		documentsActive:  documentsActive,
		chunksIndexed:    chunksIndexed,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.documentsActive.Inc()
}

func (m *WorkerMetrics) FinishDocument(service, status string, chunks int, duration time.Duration) {
	m.documentsActive.Dec()
	m.documentsTotal.WithLabelValues(service, status).Inc()
	m.documentDuration.WithLabelValues(service).Observe(duration.Seconds())
	if chunks > 0 {
		m.chunksIndexed.WithLabelValues(service).Add(float64(chunks))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
