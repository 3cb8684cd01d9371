package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitHoldSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_rate_limit_hold_seconds",
		Help: "Seconds remaining on the current rate limit hold",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_rate_limit_blocks_total",
		Help: "Total number of requests blocked by an active rate limit hold",
	})

	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_rate_limit_hits_total",
		Help: "Total number of 429 responses observed",
	})
)

// defaultHold is applied when a 429 carries no usable Retry-After header.
const defaultHold = 60 * time.Second

// Tracker records the latest 429 Retry-After hint for one Manager.
// State lives in memory only; this layer is single-process by design.
type Tracker struct {
	mu     sync.Mutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a rate limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe updates the hold from a completed response. A 429 starts (or
// extends) a hold from its Retry-After header; any success clears it.
func (t *Tracker) Observe(status int, header http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	if status == http.StatusTooManyRequests {
		hold := parseRetryAfter(header)
		holdUntil := now.Add(hold)
		if holdUntil.After(t.state.HoldUntil) {
			t.state = State{HoldUntil: holdUntil, LastStatus: status, UpdatedAt: now}
		}

		rateLimitHitsTotal.Inc()
		rateLimitHoldSeconds.Set(t.state.RemainingAt(now).Seconds())

		t.logger.Warn().
			Dur("retry_after", hold).
			Time("hold_until", t.state.HoldUntil).
			Msg("Rate limit hit; holding requests")
		return
	}

	if status >= 200 && status < 300 && t.state.ActiveAt(now) {
		t.state = State{LastStatus: status, UpdatedAt: now}
		rateLimitHoldSeconds.Set(0)
		t.logger.Debug().Msg("Rate limit hold cleared by successful response")
	}
}

// Allow reports whether a request should proceed. While a hold is
// active it returns false plus the remaining hold duration so the
// caller can surface a rate-limit error with an accurate hint.
func (t *Tracker) Allow() (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.state.ActiveAt(now) {
		return true, 0
	}

	remaining := t.state.RemainingAt(now)
	rateLimitBlocksTotal.Inc()

	t.logger.Warn().
		Dur("remaining", remaining).
		Msg("Request blocked by active rate limit hold")

	return false, remaining
}

// Reset clears any active hold.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
	rateLimitHoldSeconds.Set(0)
}

// parseRetryAfter reads Retry-After as a number of seconds, falling
// back to the default hold when absent or malformed.
func parseRetryAfter(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return defaultHold
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultHold
	}
	return time.Duration(seconds) * time.Second
}
