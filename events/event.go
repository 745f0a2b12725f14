// Package events defines the lifecycle events emitted by the simulator and the
// queue that carries them to the streaming endpoint.
package events

// Name identifies the kind of event in an Envelope.
type Name string

const (
	// ActionCompletion is emitted once per performed action.
	ActionCompletion Name = "InstrumentActionCompletion"
	// ActivityStatusChange is emitted on every activity status transition.
	ActivityStatusChange Name = "InstrumentActivityStatusChange"
)

// Envelope is a named event payload as queued and streamed.
type Envelope struct {
	EventName Name `json:"eventName"`
	EventData any  `json:"eventData"`
}

// ActionCompletionData is the payload of an ActionCompletion event.
type ActionCompletionData struct {
	ActionName   string `json:"actionName"`
	ActionStatus string `json:"actionStatus"`
	TimeBegin    string `json:"timeBegin"`
	TimeEnd      string `json:"timeEnd"`
	StatusMsg    string `json:"statusMsg,omitempty"`
}

// ActivityStatusChangeData is the payload of an ActivityStatusChange event.
type ActivityStatusChangeData struct {
	ActivityID     string `json:"activityId"`
	ActivityName   string `json:"activityName"`
	ActivityStatus string `json:"activityStatus"`
	StatusMsg      string `json:"statusMsg,omitempty"`
}

// NewActionCompletion wraps data in an Envelope.
func NewActionCompletion(data ActionCompletionData) Envelope {
	return Envelope{EventName: ActionCompletion, EventData: data}
}

// NewActivityStatusChange wraps data in an Envelope.
func NewActivityStatusChange(data ActivityStatusChangeData) Envelope {
	return Envelope{EventName: ActivityStatusChange, EventData: data}
}

// Publisher accepts envelopes for delivery.
type Publisher interface {
	Publish(Envelope)
}
