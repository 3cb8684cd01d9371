package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache layer labels.
const (
	layerMemory = "memory"
	layerRedis  = "redis"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_hits_total",
			Help: "Total number of cache hits by layer",
		},
		[]string{"layer"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_misses_total",
			Help: "Total number of cache misses by layer",
		},
		[]string{"layer"},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_cache_evictions_total",
			Help: "Total number of entries evicted by the LRU capacity bound",
		},
	)

	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_cache_entries",
			Help: "Current number of cache entries by layer",
		},
		[]string{"layer"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_errors_total",
			Help: "Total number of cache backend errors by operation",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)
)
