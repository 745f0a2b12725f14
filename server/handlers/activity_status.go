package handlers

import (
	"log/slog"
	"net/http"
)

// ActivityStatusResponse is the response body for GET /v0.1/activities/{id}/status.
type ActivityStatusResponse struct {
	ActivityStatus string `json:"activityStatus"`
	TimeBegin      string `json:"timeBegin"`
	TimeEnd        string `json:"timeEnd,omitempty"`
	StatusMsg      string `json:"statusMsg,omitempty"`
}

// ActivityStatusHandler reports the status of one activity.
type ActivityStatusHandler struct {
	logger   *slog.Logger
	provider ActivityStatusProvider
}

// NewActivityStatusHandler creates a new ActivityStatusHandler.
func NewActivityStatusHandler(logger *slog.Logger, provider ActivityStatusProvider) *ActivityStatusHandler {
	return &ActivityStatusHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivityStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.provider.Status(id)
	if err != nil {
		writeLookupError(w, h.logger, id, err)
		return
	}

	writeJSON(w, http.StatusOK, ActivityStatusResponse{
		ActivityStatus: string(rec.Status),
		TimeBegin:      rec.TimeBegin,
		TimeEnd:        rec.TimeEnd,
		StatusMsg:      rec.StatusMsg,
	})
}
