// Package metrics documents the Prometheus metrics exported by the
// tracker client. Metrics are defined in their owning packages
// (client, cache, ratelimit) via promauto to keep packages decoupled;
// this package holds the registry reference and the catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by the tracker client.
// All metrics are registered automatically via promauto.
var Registry = prometheus.DefaultRegisterer

// Metric catalog
//
// Request metrics (pkg/client):
//   - tracker_requests_total{endpoint, status} (Counter): requests by endpoint path and HTTP status
//   - tracker_request_duration_seconds{endpoint} (Histogram): request duration
//   - tracker_errors_total{class} (Counter): errors by class (auth, permission, not_found, rate_limit, api, network)
//
// Retry metrics (pkg/client):
//   - tracker_retries_total{error_class} (Counter): retry attempts
//   - tracker_retry_backoff_seconds{error_class} (Histogram): backoff waits
//   - tracker_retry_exhausted_total{error_class} (Counter): requests that spent their retry budget
//
// Cache metrics (pkg/cache):
//   - tracker_cache_hits_total{layer} (Counter): hits by layer (memory, redis)
//   - tracker_cache_misses_total{layer} (Counter): misses by layer
//   - tracker_cache_evictions_total (Counter): LRU evictions
//   - tracker_cache_entries{layer} (Gauge): current entry count
//   - tracker_cache_errors_total{operation} (Counter): backend errors
//
// Rate limit metrics (pkg/ratelimit):
//   - tracker_rate_limit_hold_seconds (Gauge): remaining hold from the latest 429
//   - tracker_rate_limit_blocks_total (Counter): requests blocked by an active hold
//   - tracker_rate_limit_hits_total (Counter): 429 responses observed
//
// Example queries:
//
//   # Cache hit rate
//   sum(rate(tracker_cache_hits_total[5m])) /
//   (sum(rate(tracker_cache_hits_total[5m])) + sum(rate(tracker_cache_misses_total[5m])))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(tracker_request_duration_seconds_bucket[5m]))
//
//   # Retry pressure
//   rate(tracker_retries_total[5m])
