package handlers

import (
	"context"
	"sync"

	"github.com/nomis52/instrumentsim/action"
	"github.com/nomis52/instrumentsim/activity"
	"github.com/nomis52/instrumentsim/config"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/logging"
)

type fakeCatalog struct {
	actions    []string
	activities []string
}

func (f fakeCatalog) Actions() []string    { return f.actions }
func (f fakeCatalog) Activities() []string { return f.activities }

type fakeConfig struct{ cfg *config.Config }

func (f fakeConfig) Config() *config.Config { return f.cfg }

type fakePerformer struct {
	err     error
	name    string
	options []action.Option
}

func (f *fakePerformer) Perform(name string, options []action.Option) error {
	f.name = name
	f.options = options
	if f.err != nil {
		return f.err
	}
	if name == "" {
		return action.ErrEmptyActionName
	}
	return nil
}

// fakeActivities serves every activity provider interface from a fixed map.
type fakeActivities struct {
	records  map[string]activity.Record
	logs     map[string][]logging.LogEntry
	startID  string
	startErr error
	cancel   error

	started struct {
		name     string
		options  []activity.Option
		deadline string
	}
	canceled struct{ id, reason string }
}

func (f *fakeActivities) Start(name string, options []activity.Option, deadline string) (string, error) {
	f.started.name = name
	f.started.options = options
	f.started.deadline = deadline
	return f.startID, f.startErr
}

func (f *fakeActivities) Cancel(id, reason string) error {
	f.canceled.id = id
	f.canceled.reason = reason
	if f.cancel != nil {
		return f.cancel
	}
	if _, ok := f.records[id]; !ok {
		return activity.ErrNotFound
	}
	return nil
}

func (f *fakeActivities) Status(id string) (activity.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return activity.Record{}, activity.ErrNotFound
	}
	return rec, nil
}

func (f *fakeActivities) Data(id string) ([]string, error) {
	rec, err := f.Status(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != activity.StatusCompleted {
		return nil, activity.ErrDataNotReady
	}
	return rec.Products, nil
}

func (f *fakeActivities) Logs(id string) ([]logging.LogEntry, error) {
	if _, err := f.Status(id); err != nil {
		return nil, err
	}
	return f.logs[id], nil
}

// fakeSource hands out pre-loaded envelopes, then blocks until ctx ends.
type fakeSource struct {
	mu    sync.Mutex
	items []events.Envelope
}

func (f *fakeSource) Next(ctx context.Context) (events.Envelope, error) {
	f.mu.Lock()
	if len(f.items) > 0 {
		env := f.items[0]
		f.items = f.items[1:]
		f.mu.Unlock()
		return env, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return events.Envelope{}, ctx.Err()
}
