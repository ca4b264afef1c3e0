package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is implemented by storage backends
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	storage Pinger
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(storage Pinger) *HealthChecker {
	return &HealthChecker{storage: storage}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles /healthz. With ?mode=extended the storage backend is pinged.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") != "extended" {
		respondJSON(w, http.StatusOK, response)
		return
	}

	checks := make(map[string]string)
	if err := h.checkStorage(r.Context()); err != nil {
		response.Status = "unhealthy"
		checks["storage"] = "unhealthy: " + sanitizeErrorMessage(err.Error())
	} else {
		checks["storage"] = "healthy"
	}
	response.Checks = checks

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, statusCode, response)
}

func (h *HealthChecker) checkStorage(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.storage.Ping(ctx)
}
