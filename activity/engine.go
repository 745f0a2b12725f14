package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nomis52/instrumentsim/clock"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/ids"
	"github.com/nomis52/instrumentsim/logging"
	"github.com/nomis52/instrumentsim/metrics"
	"github.com/nomis52/instrumentsim/tasks"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultPendingDelay  = 200 * time.Millisecond
	DefaultProgressDelay = 500 * time.Millisecond

	// DeadlineExceededMsg is the status message of an activity canceled by its deadline.
	DeadlineExceededMsg = "Deadline exceeded"
	// productsPerActivity is how many data products a completed activity yields.
	productsPerActivity = 2
)

// DefaultActivities are the activity names accepted when none are configured.
var DefaultActivities = []string{"BUILD", "SCAN"}

// Spawner runs background work that must outlive the caller.
type Spawner interface {
	Go(fn func(ctx context.Context)) error
}

// Engine owns the activity lifecycle.
type Engine struct {
	registry      *Registry
	sequence      *ids.Sequence
	tasks         Spawner
	publisher     events.Publisher
	clock         clock.Clock
	activities    []string
	pendingDelay  time.Duration
	progressDelay time.Duration
	strict        bool
	logger        *slog.Logger
	collector     *logging.LogCollector
	instruments   *metrics.Instruments

	countsMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithActivities sets the activity names Start accepts.
func WithActivities(names []string) EngineOption {
	return func(e *Engine) { e.activities = slices.Clone(names) }
}

// WithDelays sets the PENDING and IN_PROGRESS durations.
func WithDelays(pending, progress time.Duration) EngineOption {
	return func(e *Engine) {
		e.pendingDelay = pending
		e.progressDelay = progress
	}
}

// WithClock sets the clock used for timestamps and deadline checks.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithStrictTerminalStates drops writes to activities that already finished.
func WithStrictTerminalStates(strict bool) EngineOption {
	return func(e *Engine) { e.strict = strict }
}

// WithSequence sets the id sequence. Used to share a sequence across engines in tests.
func WithSequence(seq *ids.Sequence) EngineOption {
	return func(e *Engine) { e.sequence = seq }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithLogCollector sets where per-activity log lines are captured.
func WithLogCollector(c *logging.LogCollector) EngineOption {
	return func(e *Engine) { e.collector = c }
}

// WithInstruments sets the metrics recorded for starts and transitions.
func WithInstruments(in *metrics.Instruments) EngineOption {
	return func(e *Engine) { e.instruments = in }
}

// NewEngine creates an Engine storing records in registry, running timers on
// spawner and publishing status changes to publisher.
func NewEngine(registry *Registry, spawner Spawner, publisher events.Publisher, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:      registry,
		sequence:      ids.NewSequence(),
		tasks:         spawner,
		publisher:     publisher,
		clock:         clock.Real{},
		activities:    slices.Clone(DefaultActivities),
		pendingDelay:  DefaultPendingDelay,
		progressDelay: DefaultProgressDelay,
		logger:        slog.Default(),
		collector:     logging.NewLogCollector(logging.DefaultMaxEntries),
		instruments:   metrics.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activities returns the activity names Start accepts.
func (e *Engine) Activities() []string {
	return slices.Clone(e.activities)
}

// Start registers a new activity in PENDING, publishes its first status change and
// arms its timers. A rejected request returns a *StartError. Requests with a bad
// name or options consume no id; an unparsable deadline is detected after the
// id is allocated, so that id is skipped.
func (e *Engine) Start(name string, options []Option, deadline string) (string, error) {
	if err := e.validateStart(name, options); err != nil {
		e.rejectStart(name, "", err)
		return "", err
	}

	id := e.sequence.Next()
	dl, err := parseDeadline(deadline)
	if err != nil {
		e.rejectStart(name, id, err)
		return "", err
	}

	logger := logging.WithCapture(e.logger, e.collector, id).With("activity_id", id, "activity_name", name)

	rec := Record{
		ID:        id,
		Name:      name,
		Options:   slices.Clone(options),
		Status:    StatusPending,
		TimeBegin: clock.Timestamp(e.clock),
		Deadline:  dl,
	}
	if err := e.registry.Insert(rec); err != nil {
		return "", fmt.Errorf("registering activity: %w", err)
	}
	e.publish(rec)
	e.recordStatusCounts()

	if err := e.tasks.Go(func(ctx context.Context) { e.run(ctx, id, logger) }); err != nil {
		// Shutting down. The record stays PENDING, which is what a stopped
		// instrument would report.
		logger.Warn("activity timers not armed", "error", err)
	}

	e.instruments.ActivitiesStarted.With(prometheus.Labels{
		"activity_name": name,
		"result":        "accepted",
	}).Inc()
	if dl != nil {
		logger.Info("activity started", "status", string(StatusPending), "deadline", clock.Format(*dl), "options", len(options))
	} else {
		logger.Info("activity started", "status", string(StatusPending), "options", len(options))
	}
	return id, nil
}

func (e *Engine) validateStart(name string, options []Option) error {
	if name == "" {
		return &StartError{Kind: ErrInvalidRequest, Msg: "Invalid activityName: must not be empty"}
	}
	if !slices.Contains(e.activities, name) {
		return &StartError{Kind: ErrUnknownActivity, Msg: "Unknown activityName: " + name}
	}
	for i, opt := range options {
		if opt.Key == "" {
			return &StartError{
				Kind: ErrInvalidRequest,
				Msg:  fmt.Sprintf("Invalid activityOptions: option %d has an empty key", i),
			}
		}
	}
	return nil
}

func parseDeadline(deadline string) (*time.Time, error) {
	if strings.TrimSpace(deadline) == "" {
		return nil, nil
	}
	dl, err := clock.ParseTimestamp(deadline)
	if err != nil {
		return nil, &StartError{Kind: ErrInvalidDeadline, Msg: "Invalid activityDeadline: " + err.Error()}
	}
	return &dl, nil
}

func (e *Engine) rejectStart(name, skippedID string, err error) {
	e.instruments.ActivitiesStarted.With(prometheus.Labels{
		"activity_name": e.metricName(name),
		"result":        "rejected",
	}).Inc()
	if skippedID != "" {
		e.logger.Info("activity start rejected", "activity_name", name, "skipped_id", skippedID, "error", err)
		return
	}
	e.logger.Info("activity start rejected", "activity_name", name, "error", err)
}

// run drives the timer transitions of one activity.
func (e *Engine) run(ctx context.Context, id string, logger *slog.Logger) {
	if !tasks.Sleep(ctx, e.pendingDelay) {
		logger.Debug("activity timers stopped at shutdown")
		return
	}
	// A record overwritten after a cancel still only carries the fields of its
	// current status.
	e.transition(id, logger, func(rec *Record) {
		rec.Status = StatusInProgress
		rec.TimeEnd = ""
		rec.StatusMsg = ""
	})

	if !tasks.Sleep(ctx, e.progressDelay) {
		logger.Debug("activity timers stopped at shutdown")
		return
	}
	now := e.clock.Now()
	e.transition(id, logger, func(rec *Record) {
		rec.TimeEnd = clock.Format(now)
		if rec.Deadline != nil && now.After(*rec.Deadline) {
			rec.Status = StatusCanceled
			rec.StatusMsg = DeadlineExceededMsg
			return
		}
		rec.Status = StatusCompleted
		rec.StatusMsg = ""
		rec.Products = ids.NewProductIDs(productsPerActivity)
	})
}

// transition applies a timer-driven write and publishes it.
func (e *Engine) transition(id string, logger *slog.Logger, apply func(rec *Record)) {
	rec, err := e.write(id, apply)
	switch {
	case errors.Is(err, ErrTerminal):
		logger.Info("timer transition dropped", "status", string(rec.Status))
		return
	case err != nil:
		logger.Error("timer transition failed", "error", err)
		return
	}

	if rec.StatusMsg != "" {
		logger.Info("activity status changed", "status", string(rec.Status), "status_msg", rec.StatusMsg)
	} else {
		logger.Info("activity status changed", "status", string(rec.Status), "products", len(rec.Products))
	}
}

// write applies fn to a record and publishes the resulting status change while the
// registry lock is held.
func (e *Engine) write(id string, fn func(rec *Record)) (Record, error) {
	rec, err := e.registry.Update(id, func(rec *Record) error {
		if e.strict && rec.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, id, rec.Status)
		}
		fn(rec)
		e.publish(*rec)
		return nil
	})
	if err == nil {
		e.recordStatusCounts()
	}
	return rec, err
}

// recordStatusCounts sets the per-status gauge from the registry. Every status
// is set so that a status nothing is in reads zero. Holding countsMu keeps an
// older summary from overwriting a newer one.
func (e *Engine) recordStatusCounts() {
	e.countsMu.Lock()
	defer e.countsMu.Unlock()
	summary := e.Summary()
	for _, status := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCanceled} {
		e.instruments.ActivitiesByStatus.With(prometheus.Labels{"status": string(status)}).Set(float64(summary[status]))
	}
}

func (e *Engine) publish(rec Record) {
	e.publisher.Publish(events.NewActivityStatusChange(events.ActivityStatusChangeData{
		ActivityID:     rec.ID,
		ActivityName:   rec.Name,
		ActivityStatus: string(rec.Status),
		StatusMsg:      rec.StatusMsg,
	}))
	e.instruments.ActivityTransitions.With(prometheus.Labels{
		"activity_name": rec.Name,
		"status":        string(rec.Status),
	}).Inc()
}

// Cancel forces an activity to CANCELED with reason, whatever its current status.
func (e *Engine) Cancel(id, reason string) error {
	if id == "" {
		return ErrEmptyActivityID
	}
	if reason == "" {
		return ErrEmptyReason
	}

	rec, err := e.write(id, func(rec *Record) {
		rec.Status = StatusCanceled
		rec.TimeEnd = clock.Timestamp(e.clock)
		rec.StatusMsg = reason
		rec.Products = nil
	})
	if err != nil {
		return err
	}

	e.instruments.ActivityCancels.Inc()

	logger := logging.WithCapture(e.logger, e.collector, id).With("activity_id", id, "activity_name", rec.Name)
	logger.Info("activity canceled", "status", string(rec.Status), "status_msg", reason)
	return nil
}

// Status returns a copy of the record for id.
func (e *Engine) Status(id string) (Record, error) {
	rec, ok := e.registry.Get(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Data returns the products of a completed activity, or ErrDataNotReady.
func (e *Engine) Data(id string) ([]string, error) {
	rec, err := e.Status(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusCompleted {
		return nil, ErrDataNotReady
	}
	return rec.Products, nil
}

// Logs returns the log lines captured for id, oldest first.
func (e *Engine) Logs(id string) ([]logging.LogEntry, error) {
	if _, ok := e.registry.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	logs := e.collector.Get(id)
	if logs == nil {
		logs = []logging.LogEntry{}
	}
	return logs, nil
}

// Summary returns the number of activities in each status.
func (e *Engine) Summary() map[Status]int {
	summary := make(map[Status]int)
	for _, rec := range e.registry.List() {
		summary[rec.Status]++
	}
	return summary
}

// IDsIssued returns how many activity ids have been allocated, including ids
// skipped by deadline rejections.
func (e *Engine) IDsIssued() uint64 {
	return e.sequence.Issued()
}

// LoggedActivities returns how many activities have captured log lines.
func (e *Engine) LoggedActivities() int {
	return e.collector.Keys()
}

// metricName keeps label cardinality bounded for rejected starts.
func (e *Engine) metricName(name string) string {
	if slices.Contains(e.activities, name) {
		return name
	}
	return "unknown"
}
