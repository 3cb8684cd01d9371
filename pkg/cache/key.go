package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RequestKey derives a deterministic cache key for an HTTP request from
// an optional prefix, the request URL, and its query parameters.
// Parameters are sorted so that logically identical requests share a key
// regardless of argument order.
//
// Example:
//
//	RequestKey("issues", "https://tracker/api/issues", url.Values{"top": {"50"}})
//	// "issues:https://tracker/api/issues?top=50"
func RequestKey(prefix, rawURL string, params url.Values) string {
	var b strings.Builder

	if prefix != "" {
		b.WriteString(prefix)
		b.WriteString(":")
	}
	b.WriteString(rawURL)

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		for _, key := range keys {
			values := append([]string(nil), params[key]...)
			sort.Strings(values)
			for _, value := range values {
				b.WriteString(sep)
				b.WriteString(key)
				b.WriteString("=")
				b.WriteString(value)
				sep = "&"
			}
		}
	}

	return b.String()
}

// OperationKey derives a cache key for an arbitrary named operation from
// its arguments. Used by Memoize.
//
// Example:
//
//	OperationKey("resolve-project", "DEMO", 42)
//	// "resolve-project:DEMO:42"
func OperationKey(name string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return strings.Join(parts, ":")
}
