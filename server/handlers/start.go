package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/activity"
)

// StartActivityRequest defines the request body for POST /v0.1/activities/start.
type StartActivityRequest struct {
	ActivityName     string            `json:"activityName"`
	ActivityOptions  []activity.Option `json:"activityOptions,omitempty"`
	ActivityDeadline string            `json:"activityDeadline,omitempty"`
}

// StartActivityResponse is the response body for POST /v0.1/activities/start.
// A rejected start has an empty ActivityID and a non-empty ErrorMsg.
type StartActivityResponse struct {
	ActivityID string `json:"activityId"`
	ErrorMsg   string `json:"errorMsg,omitempty"`
}

// StartActivityHandler starts activities. Rejections are reported in the body
// with status 200, never as an HTTP error.
type StartActivityHandler struct {
	logger  *slog.Logger
	starter ActivityStarter
}

// NewStartActivityHandler creates a new StartActivityHandler.
func NewStartActivityHandler(logger *slog.Logger, starter ActivityStarter) *StartActivityHandler {
	return &StartActivityHandler{
		logger:  logger,
		starter: starter,
	}
}

// ServeHTTP implements http.Handler.
func (h *StartActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req StartActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.starter.Start(req.ActivityName, req.ActivityOptions, req.ActivityDeadline)
	if err != nil {
		var startErr *activity.StartError
		if errors.As(err, &startErr) {
			writeJSON(w, http.StatusOK, StartActivityResponse{ErrorMsg: startErr.Msg})
			return
		}
		h.logger.Error("failed to start activity", "activity_name", req.ActivityName, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, StartActivityResponse{ActivityID: id})
}
