package middleware

import (
	"fmt"
	"net/http"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize fits a cart of a few hundred lines.
	DefaultMaxBodySize = 256 * KB

	// WebhookMaxBodySize matches the largest Stripe event payloads.
	WebhookMaxBodySize = 1 * MB
)

// MaxBodySize limits the size of request bodies. Requests that declare a
// larger Content-Length are rejected with 413 before the handler runs;
// bodies without a declared length fail on read.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondTooLarge(w, r, fmt.Sprintf("Request body exceeds %d bytes", maxBytes))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
