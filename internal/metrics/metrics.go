// Package metrics provides Prometheus instrumentation for the price engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceAttempts counts adapter fetch attempts, partitioned by source and outcome.
	SourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rizqtrackr_source_attempts_total",
		Help: "Price source fetch attempts",
	}, []string{"source", "outcome"})

	// SourceLatency tracks adapter fetch latency per source.
	SourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rizqtrackr_source_latency_seconds",
		Help:    "Price source fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// DegradedResolutions counts resolutions served from the static fallback table.
	DegradedResolutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rizqtrackr_degraded_resolutions_total",
		Help: "Resolutions where every live source failed",
	})

	// CacheLookups counts price cache lookups by result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rizqtrackr_cache_lookups_total",
		Help: "Price cache lookups",
	}, []string{"result"})

	// AlertsFired counts alert policy decisions that fired, by category.
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rizqtrackr_alerts_fired_total",
		Help: "Alerts the policy decided to fire",
	}, []string{"category"})

	// HTTPRequestsTotal counts API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rizqtrackr_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks API request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rizqtrackr_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
