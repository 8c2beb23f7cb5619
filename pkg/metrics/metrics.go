// Package metrics exposes the Prometheus registry the proxy's collectors
// register with. Collectors live next to the code they measure (cache,
// client, reconcile, ratelimit, internal/server) and register through
// promauto; this package only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache (pkg/cache):
//   - nasa_cache_hits_total{layer} (Counter)
//   - nasa_cache_misses_total{layer} (Counter): absent or expired
//   - nasa_cache_sets_total{layer} (Counter)
//   - nasa_cache_errors_total{operation} (Counter)
//
// Upstream (pkg/client):
//   - nasa_upstream_requests_total{upstream, endpoint, status} (Counter)
//   - nasa_upstream_request_duration_seconds{upstream} (Histogram)
//   - nasa_upstream_errors_total{class} (Counter)
//   - nasa_upstream_retries_total{error_class} (Counter)
//   - nasa_upstream_retry_backoff_seconds{error_class} (Histogram)
//   - nasa_upstream_retry_exhausted_total{error_class} (Counter)
//
// Reconciliation (pkg/reconcile):
//   - nasa_reconcile_pages_total{source} (Counter): "cache" or "upstream"
//   - nasa_reconcile_duration_seconds (Histogram)
//   - nasa_reconcile_failures_total (Counter)
//
// Quota (pkg/ratelimit):
//   - nasa_quota_remaining (Gauge)
//   - nasa_quota_blocks_total (Counter)
//   - nasa_quota_throttles_total (Counter)
//
// HTTP (internal/server):
//   - nasa_http_requests_total{route, status} (Counter)
//   - nasa_http_request_duration_seconds{route} (Histogram)
//   - nasa_gate_rejections_total{reason} (Counter): "client" or "quota"
//
// Example Prometheus Queries:
//
//	# Upstream page cache hit rate
//	sum(rate(nasa_reconcile_pages_total{source="cache"}[5m])) /
//	sum(rate(nasa_reconcile_pages_total[5m]))
//
//	# Quota headroom
//	nasa_quota_remaining < 20
//
//	# P95 upstream latency
//	histogram_quantile(0.95, rate(nasa_upstream_request_duration_seconds_bucket[5m]))
