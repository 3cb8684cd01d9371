package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ryancheley/youtrack-client/internal/testutil"
)

func TestCachedRequest_SecondCallServedFromCache(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/projects", testutil.NewHealthyResponse(`[{"id": "0-0", "name": "Demo"}]`))

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	first, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if first.FromCache {
		t.Error("first request should hit the network")
	}

	second, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if !second.FromCache {
		t.Error("second request should be served from cache")
	}
	if second.Text() != first.Text() {
		t.Errorf("cached body %q differs from original %q", second.Text(), first.Text())
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("expected a single network call, got %d", mock.GetRequestCount())
	}
}

func TestCachedRequest_IneligibleRequestsBypassCache(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, m *Manager) (*Response, error)
	}{
		{
			name: "POST never cached",
			call: func(ctx context.Context, m *Manager) (*Response, error) {
				return m.CachedRequest(ctx, http.MethodPost, "/api/items", WithCacheTTL(time.Minute))
			},
		},
		{
			name: "GET with body never cached",
			call: func(ctx context.Context, m *Manager) (*Response, error) {
				return m.CachedRequest(ctx, http.MethodGet, "/api/items",
					WithCacheTTL(time.Minute), WithBody(map[string]string{"q": "x"}))
			},
		},
		{
			name: "zero TTL never cached",
			call: func(ctx context.Context, m *Manager) (*Response, error) {
				return m.CachedRequest(ctx, http.MethodGet, "/api/items")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockTracker()
			defer mock.Close()
			mock.SetResponse("/api/items", testutil.NewHealthyResponse(`{"ok": true}`))

			m := newTestManager(t, mock.URL())
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				resp, err := tt.call(ctx, m)
				if err != nil {
					t.Fatalf("call %d failed: %v", i+1, err)
				}
				if resp.FromCache {
					t.Errorf("call %d should not be served from cache", i+1)
				}
			}
			if mock.GetRequestCount() != 2 {
				t.Errorf("expected 2 network calls, got %d", mock.GetRequestCount())
			}
		})
	}
}

func TestCachedRequest_DifferentParamsMissCache(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/issues", testutil.NewHealthyResponse(`[]`))

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/issues",
		WithCacheTTL(time.Minute), WithParams(url.Values{"project": {"DEMO"}})); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/issues",
		WithCacheTTL(time.Minute), WithParams(url.Values{"project": {"OTHER"}})); err != nil {
		t.Fatalf("second request failed: %v", err)
	}

	if mock.GetRequestCount() != 2 {
		t.Errorf("different query params must use different cache keys, got %d calls", mock.GetRequestCount())
	}
}

func TestCachedRequest_PrefixNamespacesKeys(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/issues", testutil.NewHealthyResponse(`[]`))

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/issues",
		WithCacheTTL(time.Minute), WithCacheKeyPrefix("tenant-a")); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/issues",
		WithCacheTTL(time.Minute), WithCacheKeyPrefix("tenant-b")); err != nil {
		t.Fatalf("second request failed: %v", err)
	}

	if mock.GetRequestCount() != 2 {
		t.Errorf("different prefixes must use different cache keys, got %d calls", mock.GetRequestCount())
	}
}

func TestCachedRequest_ErrorsNotCached(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/missing", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "not here"}`,
	})

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.CachedRequest(ctx, http.MethodGet, "/api/missing", WithCacheTTL(time.Minute))
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("call %d: expected NotFoundError, got %v", i+1, err)
		}
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("error responses must not be cached, got %d calls", mock.GetRequestCount())
	}
}

func TestCachedRequest_InvalidJSONSkipsCacheWrite(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/raw", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "not json at all",
	})

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := m.CachedRequest(ctx, http.MethodGet, "/api/raw", WithCacheTTL(time.Minute))
		if err != nil {
			t.Fatalf("call %d failed: %v", i+1, err)
		}
		if resp.FromCache {
			t.Errorf("call %d: invalid JSON must never be served from cache", i+1)
		}
		if resp.Text() != "not json at all" {
			t.Errorf("call %d: body = %q", i+1, resp.Text())
		}
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("expected 2 network calls, got %d", mock.GetRequestCount())
	}
}

func TestCachedRequest_ExpiredEntryRefetches(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/projects", testutil.NewHealthyResponse(`[]`))

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(10*time.Millisecond)); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	resp, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(10*time.Millisecond))
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if resp.FromCache {
		t.Error("expired entry must not be served from cache")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("expected a refetch after expiry, got %d calls", mock.GetRequestCount())
	}
}

func TestCachedRequest_InvalidationForcesRefetch(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/projects", testutil.NewHealthyResponse(`[]`))

	m := newTestManager(t, mock.URL())
	ctx := context.Background()

	if _, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(time.Minute)); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	if n := m.Cache().InvalidatePattern("*projects*"); n != 1 {
		t.Fatalf("InvalidatePattern removed %d entries, want 1", n)
	}

	resp, err := m.CachedRequest(ctx, http.MethodGet, "/api/projects", WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if resp.FromCache {
		t.Error("invalidated entry must not be served from cache")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("expected a refetch after invalidation, got %d calls", mock.GetRequestCount())
	}
}
