package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal      *prometheus.CounterVec
	kbHitsTotal       *prometheus.CounterVec
	pausedRejectTotal *prometheus.CounterVec
	answerScore       *prometheus.HistogramVec
	askDuration       *prometheus.HistogramVec
	embedCacheTotal   *prometheus.CounterVec
	rateLimitedTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "assistant",
			Name:      "queries_total",
			Help:      "Total answered queries by answer source.",
		},
		[]string{"service", "source"},
	)
	kbHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "assistant",
			Name:      "kb_hits_total",
			Help:      "Total knowledge-base answers by domain.",
		},
		[]string{"service", "domain"},
	)
	pausedRejectTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "assistant",
			Name:      "paused_rejects_total",
			Help:      "Total queries answered with the pause notice.",
		},
		[]string{"service"},
	)
	answerScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "assistant",
			Name:      "answer_score",
			Help:      "Distribution of best similarity scores for knowledge-base answers.",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"service", "domain"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "assistant",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end query handling duration in seconds by answer source.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "source"},
	)
	embedCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		kbHitsTotal,
		pausedRejectTotal,
		answerScore,
		askDuration,
		embedCacheTotal,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queriesTotal:      queriesTotal,
		kbHitsTotal:       kbHitsTotal,
		pausedRejectTotal: pausedRejectTotal,
		answerScore:       answerScore,
		askDuration:       askDuration,
		embedCacheTotal:   embedCacheTotal,
		rateLimitedTotal:  rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordQuery accounts one served query. Domain and score are only relevant
// for knowledge-base answers; pass "" and a negative score otherwise.
func (m *HTTPServerMetrics) RecordQuery(service, source, domain string, score float64, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	m.queriesTotal.WithLabelValues(service, source).Inc()
	m.askDuration.WithLabelValues(service, source).Observe(duration.Seconds())

	if domain != "" {
		m.kbHitsTotal.WithLabelValues(service, domain).Inc()
		if score >= 0 {
			m.answerScore.WithLabelValues(service, domain).Observe(score)
		}
	}
}

func (m *HTTPServerMetrics) RecordPausedReject(service string) {
	m.pausedRejectTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

// EmbedCacheCounter exposes the cache counter for the embedding cache
// decorator, curried down to the single "result" label.
func (m *HTTPServerMetrics) EmbedCacheCounter(service string) *prometheus.CounterVec {
	return m.embedCacheTotal.MustCurryWith(prometheus.Labels{"service": service})
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
