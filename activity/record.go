package activity

import (
	"slices"
	"time"
)

// Status is the lifecycle state of an activity.
type Status string

const (
	StatusPending    Status = "ACTIVITY_PENDING"
	StatusInProgress Status = "ACTIVITY_IN_PROGRESS"
	StatusCompleted  Status = "ACTIVITY_COMPLETED"
	StatusCanceled   Status = "ACTIVITY_CANCELED"
)

// IsTerminal reports whether no timer transition follows s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Option is a key/value parameter supplied when an activity is started.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is the stored state of one activity.
type Record struct {
	ID        string
	Name      string
	Options   []Option
	Status    Status
	TimeBegin string
	TimeEnd   string // empty until a terminal status is written
	StatusMsg string
	Products  []string // populated only on completion
	Deadline  *time.Time
}

// clone returns a deep copy so callers never share slices with the registry.
func (r *Record) clone() Record {
	c := *r
	c.Options = slices.Clone(r.Options)
	c.Products = slices.Clone(r.Products)
	if r.Deadline != nil {
		d := *r.Deadline
		c.Deadline = &d
	}
	return c
}
