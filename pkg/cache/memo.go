package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Memoize wraps fn with cache-key derivation and write-through caching.
// The cache key is the operation name joined with keyFn's rendering of
// the argument. Concurrent calls that miss on the same key execute fn
// once and share the result (singleflight); a failed fn is not cached.
//
// Entry options (TTL, tags) apply to every value the wrapper stores.
func Memoize[A any, R any](store *Store[R], name string, keyFn func(A) string, fn func(context.Context, A) (R, error), opts ...EntryOption) func(context.Context, A) (R, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (R, error) {
		key := name + ":" + keyFn(arg)

		if v, ok := store.Get(key); ok {
			return v, nil
		}

		v, err, _ := group.Do(key, func() (any, error) {
			r, err := fn(ctx, arg)
			if err != nil {
				return nil, err
			}
			store.Set(key, r, opts...)
			return r, nil
		})
		if err != nil {
			var zero R
			return zero, err
		}

		return v.(R), nil
	}
}
