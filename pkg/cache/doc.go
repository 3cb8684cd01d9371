// Package cache provides the in-memory response cache used by the tracker
// client, plus an optional Redis-backed variant for sharing cache state
// across short-lived CLI invocations.
//
// The in-memory Store is a string-keyed TTL cache with tag-based and
// glob-pattern invalidation, an optional LRU capacity bound, and hit/miss
// accounting. A single mutex guards all operations; reads may delete
// just-expired entries, so they take the lock too.
//
// # Basic Usage
//
//	store := cache.New[string](
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithMaxSize(1000),
//	)
//	defer store.Close()
//
//	store.Set("projects:DEMO", payload, cache.WithTags("projects"))
//	if v, ok := store.Get("projects:DEMO"); ok {
//	    // cache hit
//	}
//
// # Invalidation
//
//	store.InvalidatePattern("projects:*") // glob, '*' wildcard only
//	store.InvalidateByTag("projects")     // entries tagged at Set time
//
// # Memoization
//
//	lookup := cache.Memoize(store, "resolve-project", keyFn, fetchFn)
//
// Memoize wraps an arbitrary operation with cache-key derivation and
// singleflight deduplication of concurrent misses.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - tracker_cache_hits_total{layer} - Cache hits
//   - tracker_cache_misses_total{layer} - Cache misses
//   - tracker_cache_evictions_total - LRU evictions
//   - tracker_cache_entries{layer} - Current entry count
package cache
