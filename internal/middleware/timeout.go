package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds status requests; the extended health check pings storage
const DefaultRequestTimeout = 10 * time.Second

// Timeout enforces a deadline on request handlers
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, `{"error":"Request Timeout"}`)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
