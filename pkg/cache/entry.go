package cache

import "time"

// entry is a single cached value. Entries are immutable once created;
// a Set on an existing key replaces the entry wholesale.
type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	ttl       time.Duration
	tags      map[string]struct{}
}

// isExpired reports whether the entry has outlived its TTL.
// A non-positive TTL means the entry expires immediately on the next access.
func (e *entry[V]) isExpired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// hasTag reports whether the entry was tagged with tag at Set time.
func (e *entry[V]) hasTag(tag string) bool {
	_, ok := e.tags[tag]
	return ok
}
