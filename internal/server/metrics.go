package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_http_requests_total",
			Help: "Total number of proxy HTTP requests",
		},
		[]string{"route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nasa_http_request_duration_seconds",
			Help:    "Proxy HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	gateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_gate_rejections_total",
			Help: "Requests rejected before reaching the upstream",
		},
		[]string{"reason"}, // "client", "quota"
	)
)

// instrument records request duration and status per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		pattern := routePattern(r)
		httpRequestsTotal.WithLabelValues(pattern, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the chi route pattern for bounded cardinality.
// Unmatched paths share one label.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}
