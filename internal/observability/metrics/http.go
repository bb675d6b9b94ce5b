package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatTurnsTotal       *prometheus.CounterVec
	chatTurnDuration     *prometheus.HistogramVec
	chatRetrievedChunks  *prometheus.HistogramVec
	citationRejectsTotal *prometheus.CounterVec
	sessionsLive         prometheus.GaugeFunc
}

func NewHTTPServerMetrics(service string, liveSessions func() float64) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docuchat",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chatTurnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	chatRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "chat",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	citationRejectsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "citation",
			Name:      "rejections_total",
			Help:      "Total answers withheld because citation validation failed.",
		},
		[]string{"service"},
	)
	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatTurnsTotal,
		chatTurnDuration,
		chatRetrievedChunks,
		citationRejectsTotal,
	)

	m := &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		chatTurnsTotal:       chatTurnsTotal,
		chatTurnDuration:     chatTurnDuration,
		chatRetrievedChunks:  chatRetrievedChunks,
		citationRejectsTotal: citationRejectsTotal,
	}

	if liveSessions != nil {
		m.sessionsLive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "docuchat",
				Subsystem: "chat",
				Name:      "live_sessions",
				Help:      "Number of sessions currently held in memory.",
				ConstLabels: prometheus.Labels{
					"service": service,
				},
			},
			liveSessions,
		)
		registry.MustRegister(m.sessionsLive)
	}

	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordChatTurn(service, outcome string, retrieved int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, outcome).Inc()
	m.chatTurnDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.chatRetrievedChunks.WithLabelValues(service).Observe(float64(retrieved))
}

func (m *HTTPServerMetrics) RecordCitationRejection(service string) {
	m.citationRejectsTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
