package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy describes the retry state machine consumed by the request
// loop: Attempt(n) succeeds, fails fatally, or fails retryably, in which
// case the loop waits Backoff(n) and runs Attempt(n+1) until MaxRetries
// retries have been spent.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseBackoff is the wait before the first retry. Each subsequent
	// wait doubles.
	BaseBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the policy used when the caller supplies none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff returns the wait after failed attempt n (0-based): base * 2^n,
// capped at MaxBackoff. Waits are therefore non-decreasing across attempts.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.BaseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

// retryWithBackoff drives fn through the retry state machine. fn is
// called with the 0-based attempt number. A nil return is terminal
// success; a fatal (classified) error is returned as-is with no further
// attempts; everything else is retried after an exponential wait until
// the policy is spent, then surfaced wrapped in ErrRetriesExhausted.
// Backoff waits are suspension points: cancelling ctx aborts them
// immediately.
func retryWithBackoff(ctx context.Context, policy RetryPolicy, logger zerolog.Logger, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if isFatal(err) {
			return err
		}

		lastErr = err

		if attempt >= policy.MaxRetries {
			break
		}

		class := errorClass(err)
		backoff := policy.Backoff(attempt)
		retriesTotal.WithLabelValues(class).Inc()
		retryBackoffSeconds.WithLabelValues(class).Observe(backoff.Seconds())

		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}
	}

	retryExhaustedTotal.WithLabelValues(errorClass(lastErr)).Inc()
	logger.Warn().
		Err(lastErr).
		Int("max_retries", policy.MaxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, policy.MaxRetries+1, lastErr)
}
