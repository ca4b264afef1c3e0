package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	logpkg "github.com/benvon/away-reply/internal/logger"
	"go.uber.org/zap"
)

// ErrorResponse is the body written when a status handler panics
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler recovers handler panics and answers 500 with a JSON body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("status_handler_panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizeString(r.URL.Path, maxPathLength)),
					zap.Stack("stack"),
				)
				writeError(w, r, http.StatusInternalServerError, "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
		)
	}
}
