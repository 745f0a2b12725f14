package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/action"
)

// PerformActionRequest defines the request body for POST /v0.1/actions/perform.
type PerformActionRequest struct {
	ActionName    string          `json:"actionName"`
	ActionOptions []action.Option `json:"actionOptions,omitempty"`
}

// PerformActionHandler accepts an action and acknowledges it immediately.
type PerformActionHandler struct {
	logger    *slog.Logger
	performer ActionPerformer
}

// NewPerformActionHandler creates a new PerformActionHandler.
func NewPerformActionHandler(logger *slog.Logger, performer ActionPerformer) *PerformActionHandler {
	return &PerformActionHandler{
		logger:    logger,
		performer: performer,
	}
}

// ServeHTTP implements http.Handler.
func (h *PerformActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req PerformActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.performer.Perform(req.ActionName, req.ActionOptions)
	switch {
	case errors.Is(err, action.ErrEmptyActionName), errors.Is(err, action.ErrEmptyOptionKey):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to perform action", "action_name", req.ActionName, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: true})
}
