// Package metrics exposes Prometheus metrics for the HTTP API and the evaluation engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/gradcheck/internal/logger"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradcheck_http_requests_total",
			Help: "Total HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gradcheck_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradcheck_evaluations_total",
			Help: "Aggregate evaluations by program and verdict.",
		},
		[]string{"program", "satisfied"},
	)
	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gradcheck_evaluation_duration_seconds",
			Help:    "Duration of aggregate evaluations by program.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"program"},
	)
	rulesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradcheck_rules_evaluated_total",
			Help: "Individual rule results by program and outcome.",
		},
		[]string{"program", "satisfied"},
	)
	catalogCourses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gradcheck_catalog_courses",
		Help: "Number of course records in the loaded catalog.",
	})
	programsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gradcheck_programs_loaded",
		Help: "Number of programs with a compiled engine.",
	})
)

func init() {
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "gradcheck_log_errors_total",
		Help: "Errors logged, including unsampled ones.",
	}, func() float64 { return float64(logger.TotalErrors.Load()) })
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "gradcheck_log_warnings_total",
		Help: "Warnings logged, including unsampled ones.",
	}, func() float64 { return float64(logger.TotalWarnings.Load()) })
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "gradcheck_validation_failures_total",
		Help: "Rejected catalog rows, ledgers and rule definitions.",
	}, func() float64 { return float64(logger.ValidationFailures.Load()) })
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveEvaluation records one aggregate evaluation and its per-rule outcomes.
func ObserveEvaluation(program string, satisfied bool, passed, failed int, took time.Duration) {
	evaluationsTotal.WithLabelValues(program, strconv.FormatBool(satisfied)).Inc()
	evaluationDuration.WithLabelValues(program).Observe(took.Seconds())
	rulesEvaluated.WithLabelValues(program, "true").Add(float64(passed))
	rulesEvaluated.WithLabelValues(program, "false").Add(float64(failed))
}

// SetCatalogSize records the number of loaded course records.
func SetCatalogSize(n int) {
	catalogCourses.Set(float64(n))
}

// SetProgramsLoaded records the number of registered programs.
func SetProgramsLoaded(n int) {
	programsLoaded.Set(float64(n))
}
