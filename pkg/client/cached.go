package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ryancheley/youtrack-client/pkg/cache"
)

// CachedRequest is Request with transparent read-through caching.
//
// Only GET requests with no body and a positive WithCacheTTL are
// eligible; anything else delegates straight to Request. The cache key
// is the optional prefix plus the resolved URL plus the sorted query
// string. A hit returns a response-shaped value with zero network
// calls. On a miss the successful JSON body is stored best-effort:
// an unparseable body is logged and skipped, never surfaced, since
// caching is an optimization rather than a correctness requirement.
func (m *Manager) CachedRequest(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	ro := buildRequestOptions(m.config, opts)
	if ro.bodyErr != nil {
		return nil, ro.bodyErr
	}

	if !cacheable(method, ro) {
		return m.Request(ctx, method, rawURL, opts...)
	}

	fullURL, err := m.resolveURL(rawURL, nil)
	if err != nil {
		return nil, err
	}
	key := cache.RequestKey(ro.cachePrefix, fullURL, ro.params)

	if body, ok := m.cache.Get(key); ok {
		m.logger.Debug().
			Str("method", method).
			Str("url", fullURL).
			Str("key", key).
			Msg("Cache hit")
		return cachedResponse(body), nil
	}

	m.logger.Debug().
		Str("method", method).
		Str("url", fullURL).
		Str("key", key).
		Msg("Cache miss")

	resp, err := m.Request(ctx, method, rawURL, opts...)
	if err != nil {
		return nil, err
	}

	if resp.ok() {
		if !json.Valid(resp.Body) {
			m.logger.Warn().
				Str("url", fullURL).
				Msg("Response body is not valid JSON; skipping cache write")
		} else {
			m.cache.Set(key, json.RawMessage(resp.Body), cache.WithTTL(ro.cacheTTL))
			m.logger.Debug().
				Str("key", key).
				Dur("ttl", ro.cacheTTL).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// cacheable reports whether a request qualifies for caching: GET, no
// body, positive TTL.
func cacheable(method string, ro *requestOptions) bool {
	return strings.EqualFold(method, http.MethodGet) &&
		!ro.hasBody &&
		ro.cacheTTL > 0
}

// cachedResponse wraps a cached JSON body in a response-shaped value.
func cachedResponse(body json.RawMessage) *Response {
	header := make(http.Header, 1)
	header.Set("Content-Type", "application/json")

	return &Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       body,
		FromCache:  true,
	}
}
