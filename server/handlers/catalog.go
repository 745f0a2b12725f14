package handlers

import (
	"net/http"
)

// ActionsResponse is the response body for GET /v0.1/actions.
type ActionsResponse struct {
	ActionNames []string `json:"actionNames"`
}

// ActivitiesResponse is the response body for GET /v0.1/activities.
type ActivitiesResponse struct {
	ActivityNames []string `json:"activityNames"`
}

// ListActionsHandler lists the advertised action names.
type ListActionsHandler struct {
	provider CatalogProvider
}

// NewListActionsHandler creates a new ListActionsHandler.
func NewListActionsHandler(provider CatalogProvider) *ListActionsHandler {
	return &ListActionsHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *ListActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ActionsResponse{ActionNames: nonNil(h.provider.Actions())})
}

// ListActivitiesHandler lists the activity names that can be started.
type ListActivitiesHandler struct {
	provider CatalogProvider
}

// NewListActivitiesHandler creates a new ListActivitiesHandler.
func NewListActivitiesHandler(provider CatalogProvider) *ListActivitiesHandler {
	return &ListActivitiesHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *ListActivitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ActivitiesResponse{ActivityNames: nonNil(h.provider.Activities())})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
