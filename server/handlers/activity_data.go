package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/activity"
)

const dataNotReadyMsg = "Data not ready"

// ActivityDataResponse is the response body for GET /v0.1/activities/{id}/data.
type ActivityDataResponse struct {
	Products []string `json:"products"`
	ErrorMsg string   `json:"errorMsg,omitempty"`
}

// ActivityDataHandler returns the data products of a completed activity.
type ActivityDataHandler struct {
	logger   *slog.Logger
	provider ActivityDataProvider
}

// NewActivityDataHandler creates a new ActivityDataHandler.
func NewActivityDataHandler(logger *slog.Logger, provider ActivityDataProvider) *ActivityDataHandler {
	return &ActivityDataHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivityDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	products, err := h.provider.Data(id)
	switch {
	case errors.Is(err, activity.ErrDataNotReady):
		writeJSON(w, http.StatusOK, ActivityDataResponse{Products: []string{}, ErrorMsg: dataNotReadyMsg})
	case err != nil:
		writeLookupError(w, h.logger, id, err)
	default:
		writeJSON(w, http.StatusOK, ActivityDataResponse{Products: nonNil(products)})
	}
}
