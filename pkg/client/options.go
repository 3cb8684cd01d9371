package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// RequestOption customizes a single Request, CachedRequest, or Batch item.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers     map[string]string
	params      url.Values
	body        []byte
	hasBody     bool
	timeout     time.Duration
	maxRetries  int
	cacheTTL    time.Duration
	cachePrefix string

	bodyErr error
}

// WithHeader sets a single request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithHeaders sets multiple request headers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for key, value := range headers {
			o.headers[key] = value
		}
	}
}

// WithParams sets query parameters, merged into any already present in
// the URL.
func WithParams(params url.Values) RequestOption {
	return func(o *requestOptions) {
		o.params = params
	}
}

// WithBody sets a JSON request body. A request carrying a body is never
// served from cache.
func WithBody(v any) RequestOption {
	return func(o *requestOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			o.bodyErr = fmt.Errorf("marshal request body: %w", err)
			return
		}
		o.body = data
		o.hasBody = true
	}
}

// WithTimeout overrides the Manager's default per-request timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}

// WithMaxRetries overrides the Manager's default retry budget for
// transport failures. Zero disables retries.
func WithMaxRetries(n int) RequestOption {
	return func(o *requestOptions) {
		o.maxRetries = n
	}
}

// WithCacheTTL makes an eligible CachedRequest cacheable for d.
// Requests without a positive cache TTL always hit the network.
func WithCacheTTL(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.cacheTTL = d
	}
}

// WithCacheKeyPrefix namespaces the derived cache key.
func WithCacheKeyPrefix(prefix string) RequestOption {
	return func(o *requestOptions) {
		o.cachePrefix = prefix
	}
}

// buildRequestOptions resolves per-request options against the
// Manager-level defaults.
func buildRequestOptions(cfg Config, opts []RequestOption) *requestOptions {
	o := &requestOptions{
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
