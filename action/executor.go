// Package action performs short, fire-and-forget instrument actions.
//
// An action is acknowledged as soon as it is accepted. Its outcome is decided after
// a fixed delay and reported only through an InstrumentActionCompletion event.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nomis52/instrumentsim/clock"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/metrics"
	"github.com/nomis52/instrumentsim/tasks"
	"github.com/prometheus/client_golang/prometheus"
)

// Status is the outcome of a performed action.
type Status string

const (
	StatusSuccess Status = "ACTION_SUCCESS"
	StatusFailure Status = "ACTION_FAILURE"
)

const (
	DefaultDelay          = 200 * time.Millisecond
	DefaultFailingAction  = "CALIBRATE"
	DefaultFailureMessage = "Calibration target not found"
)

var (
	// ErrEmptyActionName is returned when Perform is called without a name.
	ErrEmptyActionName = errors.New("actionName must not be empty")
	// ErrEmptyOptionKey is returned when an option has an empty key.
	ErrEmptyOptionKey = errors.New("option key must not be empty")
)

// Option is a key/value parameter supplied with an action.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Spawner runs background work that must outlive the caller.
type Spawner interface {
	Go(fn func(ctx context.Context)) error
}

// Executor accepts actions and publishes their outcome once the delay elapses.
type Executor struct {
	tasks          Spawner
	publisher      events.Publisher
	clock          clock.Clock
	delay          time.Duration
	failingAction  string
	failureMessage string
	logger         *slog.Logger
	instruments    *metrics.Instruments
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock sets the clock used for timeBegin/timeEnd.
func WithClock(c clock.Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// WithDelay sets how long an action runs before its outcome is published.
func WithDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.delay = d }
}

// WithFailure sets the action name that always fails and the message it reports.
// The name is matched case-insensitively.
func WithFailure(actionName, message string) ExecutorOption {
	return func(e *Executor) {
		e.failingAction = actionName
		e.failureMessage = message
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithInstruments sets the metrics recorded for completed actions.
func WithInstruments(in *metrics.Instruments) ExecutorOption {
	return func(e *Executor) { e.instruments = in }
}

// NewExecutor creates an Executor that runs actions on spawner and publishes to publisher.
func NewExecutor(spawner Spawner, publisher events.Publisher, opts ...ExecutorOption) *Executor {
	e := &Executor{
		tasks:          spawner,
		publisher:      publisher,
		clock:          clock.Real{},
		delay:          DefaultDelay,
		failingAction:  DefaultFailingAction,
		failureMessage: DefaultFailureMessage,
		logger:         slog.Default(),
		instruments:    metrics.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Perform accepts an action. It returns as soon as the action is scheduled; the
// outcome is published later. The name does not have to be one of the advertised
// actions.
func (e *Executor) Perform(name string, options []Option) error {
	if name == "" {
		return ErrEmptyActionName
	}
	for i, opt := range options {
		if opt.Key == "" {
			return fmt.Errorf("actionOptions[%d]: %w", i, ErrEmptyOptionKey)
		}
	}

	timeBegin := clock.Timestamp(e.clock)
	logger := e.logger.With("action_name", name)

	err := e.tasks.Go(func(ctx context.Context) {
		if !tasks.Sleep(ctx, e.delay) {
			logger.Debug("action abandoned at shutdown")
			return
		}
		e.complete(logger, name, timeBegin)
	})
	if err != nil {
		return fmt.Errorf("scheduling action %q: %w", name, err)
	}

	logger.Info("action accepted", "options", len(options))
	return nil
}

// Outcome returns the status and message an action with the given name resolves to.
func (e *Executor) Outcome(name string) (Status, string) {
	if strings.EqualFold(name, e.failingAction) {
		return StatusFailure, e.failureMessage
	}
	return StatusSuccess, ""
}

func (e *Executor) complete(logger *slog.Logger, name, timeBegin string) {
	status, msg := e.Outcome(name)

	e.publisher.Publish(events.NewActionCompletion(events.ActionCompletionData{
		ActionName:   name,
		ActionStatus: string(status),
		TimeBegin:    timeBegin,
		TimeEnd:      clock.Timestamp(e.clock),
		StatusMsg:    msg,
	}))
	e.instruments.ActionsCompleted.With(prometheus.Labels{"status": string(status)}).Inc()

	if status == StatusFailure {
		logger.Warn("action failed", "status", string(status), "status_msg", msg)
		return
	}
	logger.Info("action completed", "status", string(status))
}
