// Package client provides the core tracker HTTP client with pooled
// connections, retries, typed error classification, batching, and
// response caching.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ryancheley/youtrack-client/pkg/cache"
	"github.com/ryancheley/youtrack-client/pkg/logging"
	"github.com/ryancheley/youtrack-client/pkg/ratelimit"
)

// Prometheus metrics for tracker client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_requests_total",
		Help: "Total tracker requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_request_duration_seconds",
		Help:    "Tracker request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_errors_total",
		Help: "Total tracker errors by class",
	}, []string{"class"})
)

// Config holds the client configuration. It is read once at
// construction time.
type Config struct {
	// BaseURL is prepended to relative request paths,
	// e.g. "https://example.youtrack.cloud/api".
	BaseURL string

	// Token is an optional permanent token sent as a Bearer header.
	// Obtaining and storing tokens is the caller's concern.
	Token string

	// UserAgent identifies this client to the tracker.
	UserAgent string

	// Timeout bounds each request attempt.
	Timeout time.Duration

	// Retry policy for transport failures.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Connection pool limits.
	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration

	// TLS verification: skip it entirely, or trust a custom CA bundle.
	InsecureSkipVerify bool
	CACertFile         string

	// TrackRateLimits enables the pre-flight 429 hold check; while a
	// Retry-After hint is active, requests fail fast with a
	// RateLimitError instead of burning the server's budget.
	TrackRateLimits bool

	// Cache backs CachedRequest. A default store is created when nil.
	Cache *cache.Store[json.RawMessage]
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:       "youtrack-client/0.1.0",
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		BaseBackoff:     1 * time.Second,
		MaxBackoff:      30 * time.Second,
		MaxIdleConns:    20,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
		TrackRateLimits: true,
	}
}

// Manager owns the pooled HTTP transport and executes requests against
// it. It is safe for concurrent use; the pool is created lazily on
// first use and recreated after Close.
type Manager struct {
	mu         sync.Mutex
	httpClient *http.Client

	config    Config
	tlsConfig *tls.Config
	cache     *cache.Store[json.RawMessage]
	limiter   *ratelimit.Tracker
	logger    zerolog.Logger
}

// New creates a Manager. The connection pool itself is not built until
// the first request.
func New(cfg Config) (*Manager, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("tracker-client")

	store := cfg.Cache
	if store == nil {
		store = cache.New[json.RawMessage]()
	}

	var limiter *ratelimit.Tracker
	if cfg.TrackRateLimits {
		limiter = ratelimit.NewTracker(logger)
	}

	return &Manager{
		config:    cfg,
		tlsConfig: tlsConfig,
		cache:     store,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// buildTLSConfig resolves the verifySSL setting: a boolean skip, a
// custom CA bundle path, or system defaults.
func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.InsecureSkipVerify {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	if cfg.CACertFile == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(cfg.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("read CA cert file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CACertFile)
	}

	return &tls.Config{RootCAs: pool}, nil
}

// pool returns the shared HTTP client, lazily building the transport on
// first use and after Close. The lock only guards initialization;
// once built, the pool serializes socket acquisition internally.
func (m *Manager) pool() *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpClient == nil {
		m.httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        m.config.MaxIdleConns,
				MaxIdleConnsPerHost: m.config.MaxConnsPerHost,
				MaxConnsPerHost:     m.config.MaxConnsPerHost,
				IdleConnTimeout:     m.config.IdleConnTimeout,
				TLSClientConfig:     m.tlsConfig,
			},
		}
		m.logger.Debug().
			Int("max_idle_conns", m.config.MaxIdleConns).
			Int("max_conns_per_host", m.config.MaxConnsPerHost).
			Msg("Initialized connection pool")
	}

	return m.httpClient
}

// Close releases pooled connections. Idempotent; a later request
// lazily rebuilds the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpClient != nil {
		m.httpClient.CloseIdleConnections()
		m.httpClient = nil
		m.logger.Debug().Msg("Closed connection pool")
	}

	return nil
}

// Cache returns the store backing CachedRequest.
func (m *Manager) Cache() *cache.Store[json.RawMessage] {
	return m.cache
}

// Request executes an HTTP request with retry and error classification.
//
// Success returns the buffered response. HTTP failures surface as typed
// errors (AuthenticationError, PermissionError, NotFoundError,
// RateLimitError, APIError) on the first attempt, never retried.
// Transport failures are retried with exponential backoff and surface
// as a ConnectionError once the retry budget is spent.
func (m *Manager) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	ro := buildRequestOptions(m.config, opts)
	if ro.bodyErr != nil {
		return nil, ro.bodyErr
	}

	fullURL, err := m.resolveURL(rawURL, ro.params)
	if err != nil {
		return nil, err
	}
	endpoint := metricEndpoint(fullURL)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if m.limiter != nil {
		if allowed, hold := m.limiter.Allow(); !allowed {
			requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, &RateLimitError{
				Message:    "request blocked by active rate limit hold",
				RetryAfter: hold,
			}
		}
	}

	policy := RetryPolicy{
		MaxRetries:  ro.maxRetries,
		BaseBackoff: m.config.BaseBackoff,
		MaxBackoff:  m.config.MaxBackoff,
	}

	var resp *Response
	retryErr := retryWithBackoff(ctx, policy, m.logger, func(attempt int) error {
		r, err := m.attempt(ctx, method, fullURL, endpoint, ro, attempt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if retryErr != nil {
		errorsTotal.WithLabelValues(errorClass(retryErr)).Inc()
		if isFatal(retryErr) || errors.Is(retryErr, ErrContextCancelled) {
			return nil, retryErr
		}
		return nil, &ConnectionError{URL: fullURL, Err: retryErr}
	}

	return resp, nil
}

// attempt issues one HTTP exchange and classifies the outcome.
// Transport errors come back unwrapped so the retry loop treats them as
// retryable; classified HTTP errors are terminal.
func (m *Manager) attempt(ctx context.Context, method, fullURL, endpoint string, ro *requestOptions, attempt int) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	var body io.Reader
	if ro.hasBody {
		body = bytes.NewReader(ro.body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	m.setHeaders(req, ro)

	start := time.Now()
	httpResp, err := m.pool().Do(req)
	duration := time.Since(start)

	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("method", method).
			Str("url", fullURL).
			Dur("duration", duration).
			Int("attempt", attempt+1).
			Msg("Transport failure")
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}

	data, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if m.limiter != nil {
		m.limiter.Observe(httpResp.StatusCode, httpResp.Header)
	}

	m.logger.Debug().
		Str("method", method).
		Str("url", fullURL).
		Int("status", httpResp.StatusCode).
		Dur("duration", duration).
		Int("attempt", attempt+1).
		Msg("Request attempt completed")
	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}
	if err := classifyResponse(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// classifyResponse maps a non-2xx response to its typed error.
// Returns nil for success statuses.
func classifyResponse(resp *Response) error {
	if resp.ok() {
		return nil
	}

	message := errorMessage(resp.Body, http.StatusText(resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &AuthenticationError{Message: message}
	case http.StatusForbidden:
		return &PermissionError{Message: message}
	case http.StatusNotFound:
		return &NotFoundError{Message: message}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    message,
			RetryAfter: parseRetryAfter(resp.Header),
		}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
}

// Get performs a GET request against a tracker endpoint path.
func (m *Manager) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error) {
	return m.Request(ctx, http.MethodGet, endpoint, opts...)
}

// Post performs a POST request against a tracker endpoint path.
func (m *Manager) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Response, error) {
	opts = append(opts, WithBody(body))
	return m.Request(ctx, http.MethodPost, endpoint, opts...)
}

// setHeaders applies default and per-request headers.
func (m *Manager) setHeaders(req *http.Request, ro *requestOptions) {
	req.Header.Set("Accept", "application/json")
	if m.config.UserAgent != "" {
		req.Header.Set("User-Agent", m.config.UserAgent)
	}
	if m.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.config.Token)
	}
	if ro.hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range ro.headers {
		req.Header.Set(key, value)
	}
}

// resolveURL joins relative paths onto the configured base URL and
// merges query parameters.
func (m *Manager) resolveURL(rawURL string, params url.Values) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = strings.TrimSuffix(m.config.BaseURL, "/") + "/" + strings.TrimPrefix(rawURL, "/")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// metricEndpoint reduces a URL to its path for metric labels, keeping
// query strings out of the label space.
func metricEndpoint(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}

// Process-wide default manager, created lazily and torn down explicitly
// (reset between test cases).
var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Default returns the process-wide Manager, creating one with
// DefaultConfig on first call. The handle stays valid until
// ResetDefault.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		// DefaultConfig carries no CA bundle, so New cannot fail here.
		defaultManager, _ = New(DefaultConfig())
	}
	return defaultManager
}

// SetDefault installs a configured Manager as the process-wide handle,
// closing any previous one.
func SetDefault(m *Manager) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		defaultManager.Close()
	}
	defaultManager = m
}

// ResetDefault closes and discards the process-wide Manager. The next
// Default call creates a fresh one. Safe to call repeatedly.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		defaultManager.Close()
		defaultManager = nil
	}
}
