package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nomis52/instrumentsim/action"
	"github.com/nomis52/instrumentsim/activity"
	"github.com/nomis52/instrumentsim/clock"
	"github.com/nomis52/instrumentsim/config"
	"github.com/nomis52/instrumentsim/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// serveWithID routes through a mux so r.PathValue("id") is populated.
func serveWithID(h http.Handler, pattern, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	return serve(mux, http.MethodGet, target, "")
}

func TestHealthHandler(t *testing.T) {
	fixed := clock.Func(func() time.Time { return time.Date(2025, 6, 1, 8, 30, 15, 999, time.UTC) })
	w := serve(NewHealthHandler(fixed), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"ts":"2025-06-01T08:30:15Z"}`, w.Body.String())
}

func TestConfigHandler(t *testing.T) {
	w := serve(NewConfigHandler(fakeConfig{cfg: config.Default()}), http.MethodGet, "/v0.1/config", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "failing_action: CALIBRATE")
	assert.Contains(t, w.Body.String(), "pending_delay: 200ms")
}

func TestCatalogHandlers(t *testing.T) {
	catalog := fakeCatalog{actions: []string{"HOME", "MOVE", "CALIBRATE"}, activities: []string{"BUILD", "SCAN"}}

	w := serve(NewListActionsHandler(catalog), http.MethodGet, "/v0.1/actions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"actionNames":["HOME","MOVE","CALIBRATE"]}`, w.Body.String())

	w = serve(NewListActivitiesHandler(catalog), http.MethodGet, "/v0.1/activities", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"activityNames":["BUILD","SCAN"]}`, w.Body.String())

	w = serve(NewListActivitiesHandler(fakeCatalog{}), http.MethodGet, "/v0.1/activities", "")
	assert.JSONEq(t, `{"activityNames":[]}`, w.Body.String())
}

func TestPerformActionHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "accepted",
			body:       `{"actionName":"HOME","actionOptions":[{"key":"speed","value":"fast"}]}`,
			wantStatus: http.StatusAccepted,
			wantBody:   `{"accepted":true}`,
		},
		{
			name:       "unknown names are accepted",
			body:       `{"actionName":"DANCE"}`,
			wantStatus: http.StatusAccepted,
			wantBody:   `{"accepted":true}`,
		},
		{
			name:       "missing name",
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"error":"actionName must not be empty"}`,
		},
		{
			name:       "empty option key",
			body:       `{"actionName":"HOME","actionOptions":[{"key":"","value":"x"}]}`,
			err:        action.ErrEmptyOptionKey,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"error":"option key must not be empty"}`,
		},
		{
			name:       "shutting down",
			body:       `{"actionName":"HOME"}`,
			err:        errors.New("task group closed"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"error":"task group closed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			performer := &fakePerformer{err: tt.err}
			w := serve(NewPerformActionHandler(logging.Discard(), performer), http.MethodPost, "/v0.1/actions/perform", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestPerformActionHandler_PassesOptions(t *testing.T) {
	performer := &fakePerformer{}
	serve(NewPerformActionHandler(logging.Discard(), performer), http.MethodPost, "/v0.1/actions/perform",
		`{"actionName":"MOVE","actionOptions":[{"key":"x","value":"10"},{"key":"y","value":"20"}]}`)

	assert.Equal(t, "MOVE", performer.name)
	assert.Equal(t, []action.Option{{Key: "x", Value: "10"}, {Key: "y", Value: "20"}}, performer.options)
}

func TestPerformActionHandler_InvalidJSON(t *testing.T) {
	w := serve(NewPerformActionHandler(logging.Discard(), &fakePerformer{}), http.MethodPost, "/v0.1/actions/perform", `{"actionName":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestStartActivityHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		startID  string
		startErr error
		wantCode int
		wantBody string
	}{
		{
			name:     "started",
			body:     `{"activityName":"SCAN"}`,
			startID:  "act_0001",
			wantCode: http.StatusOK,
			wantBody: `{"activityId":"act_0001"}`,
		},
		{
			name:     "unknown activity is reported in the body",
			body:     `{"activityName":"DANCE"}`,
			startErr: &activity.StartError{Kind: activity.ErrUnknownActivity, Msg: "Unknown activityName: DANCE"},
			wantCode: http.StatusOK,
			wantBody: `{"activityId":"","errorMsg":"Unknown activityName: DANCE"}`,
		},
		{
			name:     "bad deadline is reported in the body",
			body:     `{"activityName":"SCAN","activityDeadline":"soon"}`,
			startErr: &activity.StartError{Kind: activity.ErrInvalidDeadline, Msg: "Invalid activityDeadline: soon"},
			wantCode: http.StatusOK,
			wantBody: `{"activityId":"","errorMsg":"Invalid activityDeadline: soon"}`,
		},
		{
			name:     "internal failure",
			body:     `{"activityName":"SCAN"}`,
			startErr: errors.New("registering activity: duplicate activityId"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"registering activity: duplicate activityId"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := &fakeActivities{startID: tt.startID, startErr: tt.startErr}
			w := serve(NewStartActivityHandler(logging.Discard(), starter), http.MethodPost, "/v0.1/activities/start", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestStartActivityHandler_PassesRequest(t *testing.T) {
	starter := &fakeActivities{startID: "act_0007"}
	serve(NewStartActivityHandler(logging.Discard(), starter), http.MethodPost, "/v0.1/activities/start",
		`{"activityName":"BUILD","activityOptions":[{"key":"layers","value":"3"}],"activityDeadline":"2030-01-01T00:00:00Z"}`)

	assert.Equal(t, "BUILD", starter.started.name)
	assert.Equal(t, []activity.Option{{Key: "layers", Value: "3"}}, starter.started.options)
	assert.Equal(t, "2030-01-01T00:00:00Z", starter.started.deadline)
}

func TestCancelActivityHandler(t *testing.T) {
	records := map[string]activity.Record{"act_0001": {ID: "act_0001", Status: activity.StatusInProgress}}

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "accepted",
			body:     `{"activityId":"act_0001","reason":"operator abort"}`,
			wantCode: http.StatusAccepted,
			wantBody: `{"accepted":true}`,
		},
		{
			name:     "unknown id",
			body:     `{"activityId":"act_0404","reason":"x"}`,
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"Unknown activityId"}`,
		},
		{
			name:     "missing reason",
			body:     `{"activityId":"act_0001"}`,
			err:      activity.ErrEmptyReason,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `{"error":"reason must not be empty"}`,
		},
		{
			name:     "missing id",
			body:     `{"reason":"x"}`,
			err:      activity.ErrEmptyActivityID,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `{"error":"activityId must not be empty"}`,
		},
		{
			name:     "already finished in strict mode",
			body:     `{"activityId":"act_0001","reason":"x"}`,
			err:      activity.ErrTerminal,
			wantCode: http.StatusConflict,
			wantBody: `{"error":"activity already finished"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canceler := &fakeActivities{records: records, cancel: tt.err}
			w := serve(NewCancelActivityHandler(logging.Discard(), canceler), http.MethodPost, "/v0.1/activities/cancel", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestActivityStatusHandler(t *testing.T) {
	provider := &fakeActivities{records: map[string]activity.Record{
		"act_0001": {ID: "act_0001", Status: activity.StatusInProgress, TimeBegin: "2025-01-01T00:00:00Z"},
		"act_0002": {
			ID:        "act_0002",
			Status:    activity.StatusCanceled,
			TimeBegin: "2025-01-01T00:00:00Z",
			TimeEnd:   "2025-01-01T00:00:01Z",
			StatusMsg: "Deadline exceeded",
		},
	}}
	h := NewActivityStatusHandler(logging.Discard(), provider)
	const pattern = "GET /v0.1/activities/{id}/status"

	w := serveWithID(h, pattern, "/v0.1/activities/act_0001/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"activityStatus":"ACTIVITY_IN_PROGRESS","timeBegin":"2025-01-01T00:00:00Z"}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0002/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"activityStatus":"ACTIVITY_CANCELED",
		"timeBegin":"2025-01-01T00:00:00Z",
		"timeEnd":"2025-01-01T00:00:01Z",
		"statusMsg":"Deadline exceeded"
	}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0404/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivityDataHandler(t *testing.T) {
	provider := &fakeActivities{records: map[string]activity.Record{
		"act_0001": {ID: "act_0001", Status: activity.StatusCompleted, Products: []string{"p1", "p2"}},
		"act_0002": {ID: "act_0002", Status: activity.StatusPending},
	}}
	h := NewActivityDataHandler(logging.Discard(), provider)
	const pattern = "GET /v0.1/activities/{id}/data"

	w := serveWithID(h, pattern, "/v0.1/activities/act_0001/data")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":["p1","p2"]}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0002/data")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":[],"errorMsg":"Data not ready"}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0404/data")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Unknown activityId"}`, w.Body.String())
}

func TestActivityLogsHandler(t *testing.T) {
	when := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeActivities{
		records: map[string]activity.Record{
			"act_0001": {ID: "act_0001"},
			"act_0002": {ID: "act_0002"},
		},
		logs: map[string][]logging.LogEntry{
			"act_0001": {{Time: when, Level: "INFO", Message: "activity started", Attributes: map[string]any{"status": "ACTIVITY_PENDING"}}},
		},
	}
	h := NewActivityLogsHandler(logging.Discard(), provider)
	const pattern = "GET /v0.1/activities/{id}/logs"

	w := serveWithID(h, pattern, "/v0.1/activities/act_0001/logs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logs":[{
		"time":"2025-01-01T00:00:00Z",
		"level":"INFO",
		"message":"activity started",
		"attributes":{"status":"ACTIVITY_PENDING"}
	}]}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0002/logs")
	assert.JSONEq(t, `{"logs":[]}`, w.Body.String())

	w = serveWithID(h, pattern, "/v0.1/activities/act_0404/logs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
