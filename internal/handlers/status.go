package handlers

import (
	"net/http"
	"time"

	"github.com/benvon/away-reply/internal/responder"
)

// StatusSource returns a consistent engine snapshot
type StatusSource func() responder.Status

// StatusHandler serves the engine state
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a status handler
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// StatusResponse is the /status body
type StatusResponse struct {
	Offline                 bool   `json:"offline"`
	LastActivity            string `json:"last_activity"`
	OfflineThresholdSeconds int64  `json:"offline_threshold_seconds"`
	Policy                  string `json:"policy"`
	HistorySize             int    `json:"history_size"`
	BlacklistSize           int    `json:"blacklist_size"`
	Replies                 int    `json:"replies"`
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	st := h.source()
	respondJSON(w, http.StatusOK, StatusResponse{
		Offline:                 st.Offline,
		LastActivity:            st.LastActivity.UTC().Format(time.RFC3339),
		OfflineThresholdSeconds: int64(st.OfflineThreshold / time.Second),
		Policy:                  st.Policy,
		HistorySize:             st.HistorySize,
		BlacklistSize:           st.BlacklistSize,
		Replies:                 st.Replies,
	})
}
