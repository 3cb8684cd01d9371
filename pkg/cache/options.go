package cache

import "time"

// DefaultTTL is the fallback TTL for entries stored without an explicit one.
const DefaultTTL = 5 * time.Minute

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	defaultTTL      time.Duration
	maxSize         int
	cleanupInterval time.Duration
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		defaultTTL:      DefaultTTL,
		maxSize:         0, // unlimited
		cleanupInterval: 0, // no background janitor
	}
}

// WithDefaultTTL sets the TTL applied when Set is called without WithTTL.
// Default: 5 minutes.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *storeOptions) {
		o.defaultTTL = d
	}
}

// WithMaxSize bounds the number of entries. When the bound would be
// exceeded, the least-recently-touched entry is evicted first.
// Zero means unlimited. Default: 0.
func WithMaxSize(n int) Option {
	return func(o *storeOptions) {
		o.maxSize = n
	}
}

// WithCleanupInterval starts a background janitor that removes expired
// entries on the given interval. Zero disables the janitor; expired
// entries are then removed lazily on access or via CleanupExpired.
// Default: 0.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *storeOptions) {
		o.cleanupInterval = d
	}
}

// EntryOption configures a single Set (or SetMany) call.
type EntryOption func(*entryOptions)

type entryOptions struct {
	ttl    time.Duration
	hasTTL bool
	tags   []string
}

// WithTTL sets an explicit TTL for the entry. A non-positive TTL stores
// an entry that is already expired on its next access.
func WithTTL(d time.Duration) EntryOption {
	return func(o *entryOptions) {
		o.ttl = d
		o.hasTTL = true
	}
}

// WithTags attaches tags to the entry for later InvalidateByTag calls.
func WithTags(tags ...string) EntryOption {
	return func(o *entryOptions) {
		o.tags = append(o.tags, tags...)
	}
}
