package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExtractionMetrics observes OCR requests. The in-flight gauge mirrors the sum of all
// session outstanding counters.
type ExtractionMetrics struct {
	service string

	inFlight prometheus.Gauge
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewExtractionMetrics(service string, reg prometheus.Registerer) *ExtractionMetrics {
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ocr",
			Name:        "requests_in_flight",
			Help:        "OCR requests dispatched and not yet settled.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "requests_total",
			Help:      "Settled OCR requests by engine and status.",
		},
		[]string{"service", "engine", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "request_duration_seconds",
			Help:      "OCR request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"service", "engine"},
	)
	reg.MustRegister(inFlight, total, duration)

	return &ExtractionMetrics{
		service:  service,
		inFlight: inFlight,
		total:    total,
		duration: duration,
	}
}

func (m *ExtractionMetrics) StartExtraction() {
	m.inFlight.Inc()
}

func (m *ExtractionMetrics) FinishExtraction(engine string, duration time.Duration, err error) {
	m.inFlight.Dec()
	if engine == "" {
		engine = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.total.WithLabelValues(m.service, engine, status).Inc()
	m.duration.WithLabelValues(m.service, engine).Observe(duration.Seconds())
}
