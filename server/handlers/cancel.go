package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/activity"
)

// CancelActivityRequest defines the request body for POST /v0.1/activities/cancel.
type CancelActivityRequest struct {
	ActivityID string `json:"activityId"`
	Reason     string `json:"reason"`
}

// CancelActivityHandler forces an activity to CANCELED.
type CancelActivityHandler struct {
	logger   *slog.Logger
	canceler ActivityCanceler
}

// NewCancelActivityHandler creates a new CancelActivityHandler.
func NewCancelActivityHandler(logger *slog.Logger, canceler ActivityCanceler) *CancelActivityHandler {
	return &CancelActivityHandler{
		logger:   logger,
		canceler: canceler,
	}
}

// ServeHTTP implements http.Handler.
func (h *CancelActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req CancelActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.canceler.Cancel(req.ActivityID, req.Reason)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: true})
	case errors.Is(err, activity.ErrEmptyActivityID), errors.Is(err, activity.ErrEmptyReason):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, activity.ErrTerminal):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		writeLookupError(w, h.logger, req.ActivityID, err)
	}
}
