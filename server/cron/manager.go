package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nomis52/instrumentsim/activity"
	"github.com/nomis52/instrumentsim/clock"
)

// Starter starts activities.
type Starter interface {
	Start(name string, options []activity.Option, deadline string) (string, error)
}

// Spawner runs supervised background work.
type Spawner interface {
	Go(fn func(ctx context.Context)) error
}

// triggerOption marks activities started by a schedule.
var triggerOption = activity.Option{Key: "trigger", Value: "cron"}

// Manager runs one Trigger per TriggerSpec.
type Manager struct {
	triggers []*Trigger
	specs    []TriggerSpec
	logger   *slog.Logger
}

// NewManager creates a Manager that starts each spec's activities through starter.
func NewManager(specs []TriggerSpec, starter Starter, c clock.Clock, logger *slog.Logger) (*Manager, error) {
	triggers := make([]*Trigger, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		callback := func() error {
			return startAll(starter, c, spec, logger)
		}

		trigger, err := NewTrigger(spec.CronSpec, callback, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for '%s:%s': %w",
				strings.Join(spec.Activities, activityListSeparator), spec.CronSpec, err)
		}
		triggers = append(triggers, trigger)
	}

	for i, trigger := range triggers {
		logger.Info("trigger registered",
			"index", i,
			"activities", specs[i].Activities,
			"schedule", specs[i].CronSpec,
			"next_run", trigger.NextRun(),
		)
	}

	return &Manager{
		triggers: triggers,
		specs:    specs,
		logger:   logger,
	}, nil
}

// startAll starts every activity of spec. A failure to start one activity does
// not prevent the others from starting.
func startAll(starter Starter, c clock.Clock, spec TriggerSpec, logger *slog.Logger) error {
	deadline := ""
	if spec.DeadlineAfter > 0 {
		deadline = clock.Format(c.Now().Add(spec.DeadlineAfter))
	}

	var errs []error
	for _, name := range spec.Activities {
		id, err := starter.Start(name, []activity.Option{triggerOption}, deadline)
		if err != nil {
			errs = append(errs, fmt.Errorf("starting %s: %w", name, err))
			continue
		}
		logger.Info("scheduled activity started", "activity_name", name, "activity_id", id)
	}
	return errors.Join(errs...)
}

// Start runs every trigger as a task on spawner. Triggers stop when the
// spawner's context is cancelled.
func (m *Manager) Start(spawner Spawner) error {
	for _, trigger := range m.triggers {
		if err := spawner.Go(trigger.Run); err != nil {
			return fmt.Errorf("starting trigger %q: %w", trigger.spec, err)
		}
	}
	return nil
}

// Len returns the number of triggers.
func (m *Manager) Len() int {
	return len(m.triggers)
}

// NextRun returns the earliest scheduled run time across all triggers.
// Returns zero time if there are no triggers.
func (m *Manager) NextRun() time.Time {
	var earliest time.Time
	for _, trigger := range m.triggers {
		next := trigger.NextRun()
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}
