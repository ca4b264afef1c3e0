package handlers

import (
	"net/http"

	"github.com/benvon/away-reply/internal/middleware"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// RouterOptions configures the status router
type RouterOptions struct {
	Tracing     bool
	ServiceName string
}

// NewRouter wires the status routes.
// In gorilla/mux the middleware registered first is the outermost.
func NewRouter(status *StatusHandler, health *HealthChecker, logger *zap.Logger, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	if opts.Tracing {
		r.Use(otelmux.Middleware(opts.ServiceName))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.Logging(logger))

	r.HandleFunc("/healthz", health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/status", status.Status).Methods(http.MethodGet)

	return r
}
