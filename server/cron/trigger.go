// Package cron starts activities on cron schedules.
//
// A Trigger calls its callback each time its schedule fires. A Manager owns one
// Trigger per TriggerSpec and runs them as supervised tasks, so they stop with
// the rest of the simulator's background work.
//
// Example usage:
//
//	specs, err := cron.ParseTriggerSpecs("SCAN:*/5 * * * *", engine.Activities())
//	if err != nil {
//	    return err
//	}
//	manager, err := cron.NewManager(specs, engine, clock.Real{}, logger)
//	if err != nil {
//	    return err
//	}
//	manager.Start(group)
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Trigger calls a function according to a cron schedule.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	callback func() error
	logger   *slog.Logger
}

// NewTrigger creates a Trigger. The spec follows standard cron format (5 fields:
// minute, hour, day, month, weekday) or a descriptor such as @hourly.
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewTrigger(spec string, callback func() error, logger *slog.Logger) (*Trigger, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &Trigger{
		spec:     spec,
		schedule: schedule,
		callback: callback,
		logger:   logger.With("schedule", spec),
	}, nil
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(time.Now())
}

// Run fires the callback on schedule until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) {
	for {
		nextRun := t.schedule.Next(time.Now())
		wait := time.NewTimer(time.Until(nextRun))

		t.logger.Debug("waiting for next scheduled run", "next_run", nextRun)

		select {
		case <-ctx.Done():
			wait.Stop()
			t.logger.Debug("cron trigger shutting down")
			return
		case <-wait.C:
			t.fire()
		}
	}
}

func (t *Trigger) fire() {
	if err := t.callback(); err != nil {
		t.logger.Warn("scheduled run completed with error", "error", err)
		return
	}
	t.logger.Info("scheduled run completed")
}
