// Package metrics exposes Prometheus collectors for the HTTP server, the
// question generator, and exam composition.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidequiz_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slidequiz_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidequiz_llm_requests_total",
			Help: "Question generation calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slidequiz_llm_request_duration_seconds",
			Help:    "Latency of question generation calls",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	QuestionsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidequiz_questions_ingested_total",
			Help: "Questions accepted, rejected or imported at intake",
		},
		[]string{"result"},
	)

	ExamsComposed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidequiz_exams_composed_total",
			Help: "Composed exams by mode and completeness",
		},
		[]string{"mode", "complete"},
	)

	ExamShortfall = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slidequiz_exam_shortfall_questions_total",
			Help: "Questions missing from composed exams",
		},
	)

	DocumentsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidequiz_documents_rendered_total",
			Help: "Rendered documents by kind",
		},
		[]string{"kind"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. It is safe to
// call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			LLMRequests,
			LLMDuration,
			QuestionsIngested,
			ExamsComposed,
			ExamShortfall,
			DocumentsRendered,
		)
	})
}

// Middleware records request counts and latency by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
