package client

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response is the fully-buffered result of a request. Bodies from this
// API are small JSON documents, so buffering keeps the pooled connection
// reusable and lets cached responses share the same shape.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is true when the response was served from the cache
	// with no network call.
	FromCache bool
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// ok reports whether the status code is a success.
func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// errorMessage extracts a human-readable message from an error response
// body. Tracker errors are JSON objects with one of a few well-known
// fields; anything else falls back to the raw text.
func errorMessage(body []byte, status string) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// defaultRetryAfter is used when a 429 response carries no usable
// Retry-After header.
const defaultRetryAfter = 60 * time.Second

// parseRetryAfter reads the Retry-After header as a number of seconds.
func parseRetryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
