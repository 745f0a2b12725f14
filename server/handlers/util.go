package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nomis52/instrumentsim/activity"
)

// maxBodyBytes bounds request bodies. Every request in the API is a small JSON object.
const maxBodyBytes = 1 << 20

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AcceptedResponse acknowledges a command that completes asynchronously.
type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid JSON: %v", err),
		})
		return false
	}
	return true
}

// writeLookupError maps an activity lookup failure to a response.
func writeLookupError(w http.ResponseWriter, logger *slog.Logger, id string, err error) {
	if errors.Is(err, activity.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown activityId"})
		return
	}
	logger.Error("activity lookup failed", "activity_id", id, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
