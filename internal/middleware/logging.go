package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/away-reply/internal/logger"
	"github.com/benvon/away-reply/internal/request"
	"go.uber.org/zap"
)

const maxPathLength = 500

// Logging logs one line per request. Successful probes log at debug so
// a polling monitor does not flood the log.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log := logger.Debug
			if wrapped.statusCode >= http.StatusBadRequest {
				log = logger.Info
			}
			log("http_request",
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizeString(r.URL.Path, maxPathLength)),
				zap.Int("status_code", wrapped.statusCode),
				zap.String("client_ip", logpkg.SanitizeString(request.ClientIP(r), maxPathLength)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
