package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetriesExhausted is returned (wrapped in a ConnectionError) when
	// all retry attempts are exhausted.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled
	// during a retry backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// AuthenticationError indicates a 401 response. Never retried.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// PermissionError indicates a 403 response. Never retried.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Message)
}

// NotFoundError indicates a 404 response. Never retried.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Message)
}

// RateLimitError indicates a 429 response. This layer never retries it;
// RetryAfter carries the server's hint so the caller can decide
// whether and when to try again.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter)
}

// APIError is the generic service error for any non-2xx status that is
// not classified more specifically.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// ConnectionError indicates a transport-level failure (timeout,
// connection refused, unreachable host) that survived all retries.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// isFatal reports whether err is a classified HTTP error that retrying
// cannot change without caller intervention.
func isFatal(err error) bool {
	var (
		auth *AuthenticationError
		perm *PermissionError
		nf   *NotFoundError
		rate *RateLimitError
		api  *APIError
	)
	return errors.As(err, &auth) ||
		errors.As(err, &perm) ||
		errors.As(err, &nf) ||
		errors.As(err, &rate) ||
		errors.As(err, &api)
}

// errorClass buckets an error for metrics and logging.
func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.As(err, new(*AuthenticationError)):
		return "auth"
	case errors.As(err, new(*PermissionError)):
		return "permission"
	case errors.As(err, new(*NotFoundError)):
		return "not_found"
	case errors.As(err, new(*RateLimitError)):
		return "rate_limit"
	case errors.As(err, new(*APIError)):
		return "api"
	default:
		return "network"
	}
}
