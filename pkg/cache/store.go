package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache state and counters.
type Stats struct {
	TotalEntries   int
	ActiveEntries  int
	ExpiredEntries int
	Hits           uint64
	Misses         uint64
	Evictions      uint64
}

// Store is an in-memory TTL cache with optional LRU eviction.
//
// A hash map gives O(1) lookups and a doubly-linked list keeps touch
// order for O(1) eviction: most recently touched entries at the front,
// least recently touched at the back. One mutex guards everything,
// including reads, since a Get may delete a just-expired entry.
type Store[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
	opts     *storeOptions

	hits      uint64
	misses    uint64
	evictions uint64

	done   chan struct{}
	closed bool
}

// New creates a Store.
//
// Example:
//
//	store := cache.New[string](
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithMaxSize(1000),
//	)
//	defer store.Close()
func New[V any](opts ...Option) *Store[V] {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}

	s := &Store[V]{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		opts:     o,
		done:     make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go s.janitor()
	}

	return s
}

// Get returns the value for key if present and unexpired.
// A stale entry found during lookup is removed on the spot.
// Getting a key counts as a touch for LRU purposes.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V

	elem, ok := s.items[key]
	if !ok {
		s.misses++
		cacheMisses.WithLabelValues(layerMemory).Inc()
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if e.isExpired(time.Now()) {
		s.removeElement(elem)
		s.misses++
		cacheMisses.WithLabelValues(layerMemory).Inc()
		return zero, false
	}

	s.eviction.MoveToFront(elem)
	s.hits++
	cacheHits.WithLabelValues(layerMemory).Inc()

	return e.value, true
}

// Set creates or replaces the entry for key. Without WithTTL the store's
// default TTL applies. Setting a key counts as a touch for LRU purposes.
func (s *Store[V]) Set(key string, value V, opts ...EntryOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value, opts...)
}

// set inserts a single entry. Caller must hold the mutex.
func (s *Store[V]) set(key string, value V, opts ...EntryOption) {
	eo := &entryOptions{}
	for _, opt := range opts {
		opt(eo)
	}

	ttl := s.opts.defaultTTL
	if eo.hasTTL {
		ttl = eo.ttl
	}

	var tags map[string]struct{}
	if len(eo.tags) > 0 {
		tags = make(map[string]struct{}, len(eo.tags))
		for _, tag := range eo.tags {
			tags[tag] = struct{}{}
		}
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
		tags:      tags,
	}

	// Replacing an existing key never triggers eviction.
	if elem, ok := s.items[key]; ok {
		elem.Value = e
		s.eviction.MoveToFront(elem)
		return
	}

	if s.opts.maxSize > 0 && len(s.items) >= s.opts.maxSize {
		s.evictOldest()
	}

	s.items[key] = s.eviction.PushFront(e)
	cacheEntries.WithLabelValues(layerMemory).Set(float64(len(s.items)))
}

// Delete removes the entry for key, reporting whether one existed.
// Deleting an absent key is a no-op.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}

	s.removeElement(elem)
	return true
}

// Clear removes all entries unconditionally.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.eviction.Init()
	cacheEntries.WithLabelValues(layerMemory).Set(0)
}

// CleanupExpired removes every currently-expired entry and returns
// how many were removed.
func (s *Store[V]) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := s.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry[V]).isExpired(now) {
			s.removeElement(elem)
			removed++
		}
		elem = prev
	}

	return removed
}

// Stats returns a snapshot of entry counts and hit/miss/eviction counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0
	for elem := s.eviction.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*entry[V]).isExpired(now) {
			expired++
		}
	}

	return Stats{
		TotalEntries:   len(s.items),
		ActiveEntries:  len(s.items) - expired,
		ExpiredEntries: expired,
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evictions,
	}
}

// InvalidatePattern removes every key matching a simple glob pattern
// ('*' wildcard only) and returns how many entries were removed.
// A pattern matching nothing returns 0.
func (s *Store[V]) InvalidatePattern(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, elem := range s.items {
		if matchGlob(pattern, key) {
			s.removeElement(elem)
			removed++
		}
	}

	return removed
}

// InvalidateByTag removes every entry whose tag set contains tag and
// returns how many entries were removed.
func (s *Store[V]) InvalidateByTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, elem := range s.items {
		if elem.Value.(*entry[V]).hasTag(tag) {
			s.removeElement(elem)
			removed++
		}
	}

	return removed
}

// SetMany stores every key/value pair in values with identical per-item
// semantics to repeated Set calls.
func (s *Store[V]) SetMany(values map[string]V, opts ...EntryOption) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.set(key, value, opts...)
	}
}

// DeleteMany removes every listed key and returns how many entries existed.
func (s *Store[V]) DeleteMany(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if elem, ok := s.items[key]; ok {
			s.removeElement(elem)
			removed++
		}
	}

	return removed
}

// Len returns the current entry count, expired entries included.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close stops the background janitor, if any. Idempotent.
func (s *Store[V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// janitor periodically removes expired entries.
func (s *Store[V]) janitor() {
	ticker := time.NewTicker(s.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}

// evictOldest removes the least-recently-touched entry.
// Caller must hold the mutex.
func (s *Store[V]) evictOldest() {
	elem := s.eviction.Back()
	if elem == nil {
		return
	}
	s.removeElement(elem)
	s.evictions++
	cacheEvictions.Inc()
}

// removeElement unlinks an element from both structures.
// Caller must hold the mutex.
func (s *Store[V]) removeElement(elem *list.Element) {
	s.eviction.Remove(elem)
	delete(s.items, elem.Value.(*entry[V]).key)
	cacheEntries.WithLabelValues(layerMemory).Set(float64(len(s.items)))
}

// matchGlob matches key against pattern where '*' matches any run of
// characters. No other metacharacters are recognized.
func matchGlob(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(key, last) {
		return false
	}
	key = key[:len(key)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}

	return true
}
