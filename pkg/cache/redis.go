package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	defaultTTL time.Duration
}

// WithRedisPrefix namespaces every key under prefix. Clear then only
// touches keys in that namespace instead of flushing the whole DB.
func WithRedisPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisDefaultTTL sets the TTL applied when Set is called with a
// zero TTL. Default: 5 minutes.
func WithRedisDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// RedisStore is a Redis-backed cache with the same contract surface as
// Store where Redis can express it. It exists so consecutive CLI
// invocations share cache state: the in-memory Store dies with the
// process, Redis does not.
//
// Values are serialized as JSON. Expiry is enforced by Redis itself;
// tag invalidation is backed by one set per tag.
type RedisStore[V any] struct {
	client *redis.Client
	opts   *redisOptions
}

// NewRedisStore creates a Redis-backed cache.
func NewRedisStore[V any](client *redis.Client, opts ...RedisOption) *RedisStore[V] {
	if client == nil {
		panic("redis client cannot be nil")
	}

	o := &redisOptions{defaultTTL: DefaultTTL}
	for _, opt := range opts {
		opt(o)
	}

	return &RedisStore[V]{client: client, opts: o}
}

// Get retrieves a value by key. Returns ErrCacheMiss if the key does
// not exist or has expired.
func (r *RedisStore[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := r.client.Get(ctx, r.prefixed(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.WithLabelValues(layerRedis).Inc()
			return zero, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return zero, fmt.Errorf("redis get: %w", err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return zero, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	cacheHits.WithLabelValues(layerRedis).Inc()
	return v, nil
}

// Set stores a value under key. A zero TTL uses the store default;
// a negative TTL stores nothing, matching the in-memory semantics of an
// entry that is expired on its next access.
func (r *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration, tags ...string) error {
	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}
	if ttl < 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.prefixed(key), data, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, r.tagKey(tag), r.prefixed(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a key, reporting whether it existed.
func (r *RedisStore[V]) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.prefixed(key)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Clear removes all entries. With a prefix configured, only keys in
// that namespace are removed (SCAN-based, non-blocking); without one
// the whole DB is flushed.
func (r *RedisStore[V]) Clear(ctx context.Context) error {
	if r.opts.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}
	_, err := r.deleteMatching(ctx, r.opts.prefix+":*")
	return err
}

// InvalidatePattern removes every key matching a glob pattern
// ('*' wildcard) and returns how many keys were removed.
func (r *RedisStore[V]) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	return r.deleteMatching(ctx, r.prefixed(pattern))
}

// InvalidateByTag removes every key tagged with tag at Set time and
// returns how many keys were removed.
func (r *RedisStore[V]) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	keys, err := r.client.SMembers(ctx, r.tagKey(tag)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	removed := 0
	if len(keys) > 0 {
		n, err := r.client.Del(ctx, keys...).Result()
		if err != nil {
			cacheErrors.WithLabelValues("invalidate").Inc()
			return 0, fmt.Errorf("redis del: %w", err)
		}
		removed = int(n)
	}

	if err := r.client.Del(ctx, r.tagKey(tag)).Err(); err != nil {
		return removed, fmt.Errorf("redis del tag set: %w", err)
	}

	return removed, nil
}

// deleteMatching SCANs for keys matching pattern and deletes them in
// batches. SCAN does not block the server, unlike KEYS.
func (r *RedisStore[V]) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			cacheErrors.WithLabelValues("invalidate").Inc()
			return removed, fmt.Errorf("redis scan: %w", err)
		}

		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				cacheErrors.WithLabelValues("invalidate").Inc()
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (r *RedisStore[V]) prefixed(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}

func (r *RedisStore[V]) tagKey(tag string) string {
	if r.opts.prefix == "" {
		return "tag:" + tag
	}
	return r.opts.prefix + ":tag:" + tag
}
