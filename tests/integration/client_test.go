package integration

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ryancheley/youtrack-client/internal/testutil"
	"github.com/ryancheley/youtrack-client/pkg/cache"
	"github.com/ryancheley/youtrack-client/pkg/client"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newManager(t *testing.T, baseURL string) *client.Manager {
	t.Helper()

	cfg := client.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Token = "integration-token"
	cfg.BaseBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond

	mgr, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// TestFullRequestFlow walks the complete path: request, cache write,
// cache hit, invalidation, refetch.
func TestFullRequestFlow(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()

	mock.SetIssuesResponse("DEMO", testutil.NewHealthyResponse(`[
		{"id": "DEMO-1", "summary": "Login broken"},
		{"id": "DEMO-2", "summary": "Typo on landing page"}
	]`))

	mgr := newManager(t, mock.URL())
	ctx := context.Background()

	// First request goes to the network and populates the cache.
	first, err := mgr.CachedRequest(ctx, http.MethodGet, "/api/issues/DEMO",
		client.WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if first.FromCache {
		t.Error("First request should not be served from cache")
	}

	var issues []struct {
		ID      string `json:"id"`
		Summary string `json:"summary"`
	}
	if err := first.JSON(&issues); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("Expected 2 issues, got %d", len(issues))
	}

	// Second request is a cache hit.
	second, err := mgr.CachedRequest(ctx, http.MethodGet, "/api/issues/DEMO",
		client.WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	if !second.FromCache {
		t.Error("Second request should be served from cache")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 upstream request, got %d", mock.GetRequestCount())
	}

	// Invalidation forces the next request back to the network.
	if n := mgr.Cache().InvalidatePattern("*DEMO*"); n != 1 {
		t.Fatalf("InvalidatePattern removed %d entries, want 1", n)
	}

	third, err := mgr.CachedRequest(ctx, http.MethodGet, "/api/issues/DEMO",
		client.WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("Third request failed: %v", err)
	}
	if third.FromCache {
		t.Error("Request after invalidation should not be served from cache")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", mock.GetRequestCount())
	}
}

// TestRetryFlow verifies that transport failures are retried and the
// request eventually succeeds.
func TestRetryFlow(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()

	done := make(chan struct{})
	var attempts atomic.Int32
	mock.SetHandler("/api/issues/DEMO-1", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			// Stall past the per-attempt timeout.
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "DEMO-1"}`))
	})
	defer close(done)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 100 * time.Millisecond
	cfg.MaxRetries = 3
	cfg.BaseBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond

	mgr, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer mgr.Close()

	resp, err := mgr.Get(context.Background(), "/api/issues/DEMO-1")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d", resp.StatusCode)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

// TestBatchFlow fetches several endpoints concurrently against a live
// HTTP server.
func TestBatchFlow(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()

	mock.SetResponse("/api/issues/DEMO-1", testutil.NewHealthyResponse(`{"id": "DEMO-1"}`))
	mock.SetResponse("/api/issues/DEMO-2", testutil.NewHealthyResponse(`{"id": "DEMO-2"}`))
	mock.SetResponse("/api/issues/DEMO-3", testutil.NewHealthyResponse(`{"id": "DEMO-3"}`))

	mgr := newManager(t, mock.URL())

	specs := []client.RequestSpec{
		{URL: "/api/issues/DEMO-1"},
		{URL: "/api/issues/DEMO-2"},
		{URL: "/api/issues/DEMO-3"},
	}

	results, err := mgr.Batch(context.Background(), specs, 2)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}

	for i, resp := range results {
		var issue struct {
			ID string `json:"id"`
		}
		if err := resp.JSON(&issue); err != nil {
			t.Fatalf("Result %d: decode failed: %v", i, err)
		}
		want := []string{"DEMO-1", "DEMO-2", "DEMO-3"}[i]
		if issue.ID != want {
			t.Errorf("Result %d: id = %q, want %q", i, issue.ID, want)
		}
	}
}

// TestErrorClassificationFlow checks that server errors surface as
// typed errors without retries.
func TestErrorClassificationFlow(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	mock.SetResponse("/api/secret", testutil.NewUnauthorizedResponse())

	mgr := newManager(t, mock.URL())

	_, err := mgr.Get(context.Background(), "/api/secret")

	var authErr *client.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthenticationError, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 request, got %d", mock.GetRequestCount())
	}
}

// TestRedisStoreFlow exercises the Redis-backed cache against a real
// Redis instance.
func TestRedisStoreFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore[string](redisClient,
		cache.WithRedisPrefix("integration"),
		cache.WithRedisDefaultTTL(time.Minute))

	ctx := context.Background()

	if err := store.Set(ctx, "issue:DEMO-1", `{"id": "DEMO-1"}`, time.Minute, "issues"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "issue:DEMO-2", `{"id": "DEMO-2"}`, time.Minute, "issues"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "user:alice", `{"login": "alice"}`, time.Minute, "users"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := store.Get(ctx, "issue:DEMO-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != `{"id": "DEMO-1"}` {
		t.Errorf("Get returned %q", value)
	}

	// Miss on an unknown key.
	if _, err := store.Get(ctx, "issue:MISSING"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}

	// Tag invalidation removes both issue entries, leaves the user.
	removed, err := store.InvalidateByTag(ctx, "issues")
	if err != nil {
		t.Fatalf("InvalidateByTag failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("InvalidateByTag removed %d, want 2", removed)
	}
	if _, err := store.Get(ctx, "issue:DEMO-1"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after invalidation, got %v", err)
	}
	if _, err := store.Get(ctx, "user:alice"); err != nil {
		t.Errorf("User entry should survive issue invalidation: %v", err)
	}

	// Pattern invalidation.
	if err := store.Set(ctx, "issue:DEMO-3", `{"id": "DEMO-3"}`, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	removed, err = store.InvalidatePattern(ctx, "issue:*")
	if err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("InvalidatePattern removed %d, want 1", removed)
	}

	// Expired entries disappear.
	if err := store.Set(ctx, "short-lived", "x", 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := store.Get(ctx, "short-lived"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after TTL expiry, got %v", err)
	}
}
