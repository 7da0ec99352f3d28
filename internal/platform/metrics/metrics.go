// Package metrics exposes Prometheus instrumentation for the HRD service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Calculation modes used as the "mode" label.
const (
	ModeBuffer = "buffer"
	ModeRate   = "rate"
	ModeBatch  = "batch"
)

// Metrics holds Prometheus counters and histograms for the HRD service.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	solvesTotal      *prometheus.CounterVec
	infeasibleTotal  prometheus.Counter
	solverIterations prometheus.Histogram
	solveDuration    *prometheus.HistogramVec
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hrd_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hrd_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	solvesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hrd_calculations_total",
		Help: "Total number of completed calculations by mode",
	}, []string{"mode"})
	infeasibleTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hrd_infeasible_total",
		Help: "Total number of rate-to-buffer calculations that were infeasible",
	})
	solverIterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hrd_solver_iterations",
		Help:    "Bracket-narrowing rounds per minimum-rate search",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})
	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hrd_calculation_duration_seconds",
		Help:    "Wall time of a calculation by mode",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"mode"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		solvesTotal,
		infeasibleTotal,
		solverIterations,
		solveDuration,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		solvesTotal:      solvesTotal,
		infeasibleTotal:  infeasibleTotal,
		solverIterations: solverIterations,
		solveDuration:    solveDuration,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncInfeasible increments the infeasible result counter.
func (m *Metrics) IncInfeasible() {
	m.infeasibleTotal.Inc()
}

// ObserveCalculation records a completed calculation of the given mode.
func (m *Metrics) ObserveCalculation(mode string, elapsed time.Duration) {
	m.solvesTotal.WithLabelValues(mode).Inc()
	m.solveDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveIterations records the rounds taken by one minimum-rate search.
func (m *Metrics) ObserveIterations(n int) {
	m.solverIterations.Observe(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware returns chi-compatible middleware that records request count
// and error count (status >= 400) in the given Metrics.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			m.IncRequests()
			if wrap.status >= 400 {
				m.IncErrors()
			}
		})
	}
}
