package activity

import "errors"

var (
	// ErrNotFound is returned for an activity id that was never issued.
	ErrNotFound = errors.New("unknown activityId")
	// ErrUnknownActivity is returned when starting an activity that is not in the catalog.
	ErrUnknownActivity = errors.New("unknown activity name")
	// ErrInvalidDeadline is returned when the start deadline cannot be parsed.
	ErrInvalidDeadline = errors.New("invalid deadline")
	// ErrInvalidRequest is returned when a start request is missing a required field.
	ErrInvalidRequest = errors.New("invalid start request")
	// ErrEmptyActivityID is returned by Cancel when no id is supplied.
	ErrEmptyActivityID = errors.New("activityId must not be empty")
	// ErrEmptyReason is returned by Cancel when no reason is supplied.
	ErrEmptyReason = errors.New("reason must not be empty")
	// ErrTerminal is returned when a write to a finished activity is dropped.
	ErrTerminal = errors.New("activity already finished")
	// ErrDataNotReady is returned by Data until the activity has completed.
	ErrDataNotReady = errors.New("data not ready")
	// ErrDuplicateID is returned by Registry.Insert for an id already stored.
	ErrDuplicateID = errors.New("duplicate activityId")
)

// StartError is a rejected start request. Msg is the message reported to the
// caller in place of an activity id.
type StartError struct {
	Kind error
	Msg  string
}

func (e *StartError) Error() string { return e.Msg }

func (e *StartError) Unwrap() error { return e.Kind }
