package handlers

import (
	"net/http"

	"github.com/nomis52/instrumentsim/clock"
)

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	OK bool   `json:"ok"`
	TS string `json:"ts"`
}

// HealthHandler reports that the simulator is up.
type HealthHandler struct {
	clock clock.Clock
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(c clock.Clock) *HealthHandler {
	return &HealthHandler{clock: c}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		OK: true,
		TS: clock.Timestamp(h.clock),
	})
}
