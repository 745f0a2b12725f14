package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/logging"
)

// ActivityLogsResponse is the response body for GET /v0.1/activities/{id}/logs.
type ActivityLogsResponse struct {
	Logs []logging.LogEntry `json:"logs"`
}

// ActivityLogsHandler returns the lifecycle log lines captured for an activity.
type ActivityLogsHandler struct {
	logger   *slog.Logger
	provider ActivityLogProvider
}

// NewActivityLogsHandler creates a new ActivityLogsHandler.
func NewActivityLogsHandler(logger *slog.Logger, provider ActivityLogProvider) *ActivityLogsHandler {
	return &ActivityLogsHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivityLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logs, err := h.provider.Logs(id)
	if err != nil {
		writeLookupError(w, h.logger, id, err)
		return
	}
	if logs == nil {
		logs = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, ActivityLogsResponse{Logs: logs})
}
