package simclient

import (
	"encoding/json"
	"time"
)

// Option is a key/value parameter of an action or activity.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Health is the response of the health check.
type Health struct {
	OK bool   `json:"ok"`
	TS string `json:"ts"`
}

type actionsResponse struct {
	ActionNames []string `json:"actionNames"`
}

type activitiesResponse struct {
	ActivityNames []string `json:"activityNames"`
}

type performRequest struct {
	ActionName    string   `json:"actionName"`
	ActionOptions []Option `json:"actionOptions,omitempty"`
}

type startRequest struct {
	ActivityName     string   `json:"activityName"`
	ActivityOptions  []Option `json:"activityOptions,omitempty"`
	ActivityDeadline string   `json:"activityDeadline,omitempty"`
}

type startResponse struct {
	ActivityID string `json:"activityId"`
	ErrorMsg   string `json:"errorMsg,omitempty"`
}

type cancelRequest struct {
	ActivityID string `json:"activityId"`
	Reason     string `json:"reason"`
}

// ActivityStatus is the reported state of one activity.
type ActivityStatus struct {
	ActivityStatus string `json:"activityStatus"`
	TimeBegin      string `json:"timeBegin"`
	TimeEnd        string `json:"timeEnd,omitempty"`
	StatusMsg      string `json:"statusMsg,omitempty"`
}

// Finished reports whether the activity reached a terminal status.
func (s ActivityStatus) Finished() bool {
	return s.ActivityStatus == "ACTIVITY_COMPLETED" || s.ActivityStatus == "ACTIVITY_CANCELED"
}

type dataResponse struct {
	Products []string `json:"products"`
	ErrorMsg string   `json:"errorMsg,omitempty"`
}

// LogEntry is one captured lifecycle log line of an activity.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type logsResponse struct {
	Logs []LogEntry `json:"logs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Event is one event received from the event stream.
type Event struct {
	// Name is the SSE event name, equal to the envelope's eventName.
	Name string
	// Data is the eventData object of the envelope.
	Data json.RawMessage
}
