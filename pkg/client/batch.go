package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent bounds in-flight batch requests when the caller
// passes no limit.
const DefaultMaxConcurrent = 10

// RequestSpec describes one request in a batch. Zero values fall back
// to the Manager's defaults.
type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  url.Values
	Body    any

	// Timeout and MaxRetries override the Manager defaults when set.
	Timeout    time.Duration
	MaxRetries int
	hasRetries bool

	// CacheTTL routes an eligible spec through CachedRequest.
	CacheTTL       time.Duration
	CacheKeyPrefix string
}

// WithRetries sets an explicit retry budget on the spec, distinguishing
// "zero retries" from "use the default".
func (s RequestSpec) WithRetries(n int) RequestSpec {
	s.MaxRetries = n
	s.hasRetries = true
	return s
}

// options converts the spec into request options.
func (s RequestSpec) options() []RequestOption {
	var opts []RequestOption
	if len(s.Headers) > 0 {
		opts = append(opts, WithHeaders(s.Headers))
	}
	if len(s.Params) > 0 {
		opts = append(opts, WithParams(s.Params))
	}
	if s.Body != nil {
		opts = append(opts, WithBody(s.Body))
	}
	if s.Timeout > 0 {
		opts = append(opts, WithTimeout(s.Timeout))
	}
	if s.hasRetries || s.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(s.MaxRetries))
	}
	if s.CacheTTL > 0 {
		opts = append(opts, WithCacheTTL(s.CacheTTL))
	}
	if s.CacheKeyPrefix != "" {
		opts = append(opts, WithCacheKeyPrefix(s.CacheKeyPrefix))
	}
	return opts
}

// Batch executes all specs concurrently, with at most maxConcurrent in
// flight at once (DefaultMaxConcurrent when <= 0). Results come back in
// input order regardless of completion order.
//
// The first failure cancels the remaining work and is returned
// alongside the partially-filled slice; slots whose requests completed
// before the cancellation keep their responses.
func (m *Manager) Batch(ctx context.Context, specs []RequestSpec, maxConcurrent int) ([]*Response, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	m.logger.Debug().
		Int("requests", len(specs)).
		Int("max_concurrent", maxConcurrent).
		Msg("Starting batch")

	results := make([]*Response, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, spec := range specs {
		g.Go(func() error {
			resp, err := m.dispatch(gctx, spec)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// dispatch routes a spec through CachedRequest when it asks for
// caching, plain Request otherwise.
func (m *Manager) dispatch(ctx context.Context, spec RequestSpec) (*Response, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	if spec.CacheTTL > 0 {
		return m.CachedRequest(ctx, method, spec.URL, spec.options()...)
	}
	return m.Request(ctx, method, spec.URL, spec.options()...)
}
