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

const namespace = "textify"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	exportsTotal    *prometheus.CounterVec
	uploadsRejected *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Export attempts by format and status.",
		},
		[]string{"service", "format", "status"},
	)
	uploadsRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "rejected_files_total",
			Help:      "Selected files rejected before extraction, by reason.",
		},
		[]string{"service", "reason"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "active",
			Help:        "Number of open capture sessions.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		exportsTotal,
		uploadsRejected,
		sessionsActive,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		exportsTotal:    exportsTotal,
		uploadsRejected: uploadsRejected,
		sessionsActive:  sessionsActive,
	}
}

// Registry lets other collectors of the same process share the /metrics endpoint.
func (m *HTTPServerMetrics) Registry() prometheus.Registerer {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordExport(service, format string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportsTotal.WithLabelValues(service, format, status).Inc()
}

func (m *HTTPServerMetrics) RecordRejectedFile(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.uploadsRejected.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) SessionOpened() { m.sessionsActive.Inc() }
func (m *HTTPServerMetrics) SessionClosed() { m.sessionsActive.Dec() }

// normalizePath folds ids and indices so label cardinality stays bounded.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/sessions/")
	if !ok || rest == "" {
		return path
	}
	parts := strings.Split(rest, "/")
	parts[0] = "{session_id}"
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "images", "results":
			parts[i] = "{index}"
		case "exports":
			parts[i] = "{export_id}"
		}
	}
	return "/v1/sessions/" + strings.Join(parts, "/")
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
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
