// Package server provides the HTTP server of the instrument simulator.
//
// The server exposes the instrument controller API over JSON, streams
// lifecycle events over Server-Sent Events and optionally starts activities on
// cron schedules.
//
// # Endpoints
//
//   - GET /healthz - Health check with the server time
//   - GET /v0.1/actions - Advertised action names
//   - GET /v0.1/activities - Advertised activity names
//   - POST /v0.1/actions/perform - Accepts a fire-and-forget action
//   - POST /v0.1/activities/start - Starts an activity
//   - POST /v0.1/activities/cancel - Cancels an activity
//   - GET /v0.1/activities/{id}/status - Activity record
//   - GET /v0.1/activities/{id}/data - Data products of a completed activity
//   - GET /v0.1/activities/{id}/logs - Captured lifecycle logs of an activity
//   - GET /v0.1/config - Effective configuration as YAML
//   - GET /events - Event stream
//   - GET /metrics - Prometheus metrics, when enabled
//
// # Architecture
//
// Timers for actions and activities run on a tasks.Group that is independent of
// any request, so work accepted over HTTP outlives the request. Every
// transition is published to a single unbounded events.Queue which the event
// stream drains.
//
// # Example
//
//	cfg, err := config.LoadConfig("/etc/instrumentsim/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nomis52/instrumentsim/action"
	"github.com/nomis52/instrumentsim/activity"
	"github.com/nomis52/instrumentsim/clock"
	"github.com/nomis52/instrumentsim/config"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/logging"
	"github.com/nomis52/instrumentsim/metrics"
	"github.com/nomis52/instrumentsim/server/cron"
	"github.com/nomis52/instrumentsim/server/handlers"
	"github.com/nomis52/instrumentsim/tasks"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultReadTimeout       = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Server is the HTTP server of the simulator.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	clock     clock.Clock
	heartbeat time.Duration
	schedule  string

	group    *tasks.Group
	queue    *events.Queue
	executor *action.Executor
	engine   *activity.Engine

	scrape *metrics.ScrapeRegistry
	push   *metrics.PushRegistry
	cron   *cron.Manager

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets the logger instead of building one from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Server) error {
		s.clock = c
		return nil
	}
}

// WithHeartbeat sets how often an idle event stream receives a keep-alive comment.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return errors.New("heartbeat must not be negative")
		}
		s.heartbeat = d
		return nil
	}
}

// WithSchedule adds cron triggers given as "ACTIVITY[,ACTIVITY]:cron[;...]", in
// addition to the schedules in the config.
func WithSchedule(spec string) Option {
	return func(s *Server) error {
		s.schedule = spec
		return nil
	}
}

// New creates a Server from cfg. cfg must already have defaults applied and be valid.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		clock:     clock.Real{},
		heartbeat: handlers.DefaultHeartbeat,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		s.logger = logger.Logger
		s.logCloser = logger
	}

	instruments, err := s.buildMetrics()
	if err != nil {
		return nil, err
	}

	s.group = tasks.NewGroup(tasks.WithRunningHook(func(n int) {
		instruments.TasksRunning.Set(float64(n))
	}))
	s.queue = events.NewQueue(
		events.WithPublishHook(func(env events.Envelope) {
			instruments.EventsPublished.With(prometheus.Labels{"event": string(env.EventName)}).Inc()
		}),
		events.WithDepthHook(func(n int) {
			instruments.QueueDepth.Set(float64(n))
		}),
	)

	s.executor = action.NewExecutor(s.group, s.queue,
		action.WithClock(s.clock),
		action.WithDelay(cfg.Timing.ActionDelay),
		action.WithFailure(cfg.Catalog.FailingAction, cfg.Catalog.FailureMessage),
		action.WithLogger(s.logger.With("component", "executor")),
		action.WithInstruments(instruments),
	)
	s.engine = activity.NewEngine(activity.NewRegistry(), s.group, s.queue,
		activity.WithActivities(cfg.Catalog.Activities),
		activity.WithDelays(cfg.Timing.PendingDelay, cfg.Timing.ProgressDelay),
		activity.WithClock(s.clock),
		activity.WithStrictTerminalStates(cfg.Lifecycle.StrictTerminalStates),
		activity.WithLogger(s.logger.With("component", "engine")),
		activity.WithInstruments(instruments),
	)

	if err := s.buildCron(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = mux

	return s, nil
}

// buildMetrics creates the scrape registry, the push registry or both, as configured.
func (s *Server) buildMetrics() (*metrics.Instruments, error) {
	mon := s.cfg.Monitoring
	var regs metrics.MultiRegistry

	if mon.MetricsOn() {
		scrape, err := metrics.NewScrapeRegistry()
		if err != nil {
			return nil, fmt.Errorf("creating metrics registry: %w", err)
		}
		s.scrape = scrape
		regs = append(regs, scrape)
	}
	if mon.RemoteWriteURL != "" {
		s.push = metrics.NewPushRegistry(metrics.PushConfig{
			URL:      mon.RemoteWriteURL,
			Prefix:   mon.MetricsPrefix,
			Job:      mon.JobName,
			Instance: mon.Instance,
			Interval: mon.PushInterval,
			Logger:   s.logger.With("component", "metrics"),
		})
		regs = append(regs, s.push)
	}

	if len(regs) == 0 {
		return metrics.Nop(), nil
	}
	instruments, err := metrics.NewInstruments(regs)
	if err != nil {
		return nil, fmt.Errorf("creating instruments: %w", err)
	}
	return instruments, nil
}

// buildCron collects the configured schedules and the WithSchedule spec.
func (s *Server) buildCron() error {
	available := s.engine.Activities()

	var specs []cron.TriggerSpec
	for i, sched := range s.cfg.Schedules {
		spec, err := cron.NewTriggerSpec(sched.Activities, sched.Schedule, sched.DeadlineAfter, available)
		if err != nil {
			return fmt.Errorf("schedules[%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	if s.schedule != "" {
		parsed, err := cron.ParseTriggerSpecs(s.schedule, available)
		if err != nil {
			return err
		}
		specs = append(specs, parsed...)
	}
	if len(specs) == 0 {
		return nil
	}

	manager, err := cron.NewManager(specs, s.engine, s.clock, s.logger.With("component", "cron"))
	if err != nil {
		return err
	}
	s.cron = manager
	return nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Config returns the effective configuration.
func (s *Server) Config() *config.Config {
	return s.cfg
}

// Actions returns the advertised action names.
func (s *Server) Actions() []string {
	return s.cfg.Catalog.Actions
}

// Activities returns the advertised activity names.
func (s *Server) Activities() []string {
	return s.engine.Activities()
}

// NextRun returns the next scheduled activity start, or nil if no schedule is configured.
func (s *Server) NextRun() *time.Time {
	if s.cron == nil {
		return nil
	}
	next := s.cron.NextRun()
	return &next
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts background work and the HTTP server, and blocks until ctx is
// cancelled or the listener fails. It shuts everything down before returning.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Listener.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	tlsEnabled := s.cfg.Listener.TLSEnabled()
	if tlsEnabled {
		loader, err := NewCertLoader(s.cfg.Listener.TLSCert, s.cfg.Listener.TLSKey, s.logger)
		if err != nil {
			ln.Close()
			return err
		}
		httpServer.TLSConfig = loader.TLSConfig()
	}

	if err := s.startBackground(); err != nil {
		ln.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"tls", tlsEnabled,
			"actions", s.Actions(),
			"activities", s.Activities(),
		)
		var err error
		if tlsEnabled {
			err = httpServer.ServeTLS(ln, "", "")
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timing.ShutdownTimeout)
	defer cancel()

	cancelBase()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown incomplete", "error", err)
	}
	s.shutdown(shutdownCtx)
	return serveErr
}

// startBackground starts the cron triggers and the metrics pusher.
func (s *Server) startBackground() error {
	if s.cron != nil {
		if err := s.cron.Start(s.group); err != nil {
			return err
		}
		s.logger.Info("cron triggers started", "triggers", s.cron.Len(), "next_run", s.cron.NextRun())
	}
	if s.push != nil {
		if err := s.group.Go(s.push.Run); err != nil {
			return err
		}
	}
	return nil
}

// shutdown stops background tasks, closes the event queue and logs a summary of
// every activity.
func (s *Server) shutdown(ctx context.Context) {
	if err := s.group.Shutdown(ctx); err != nil {
		s.logger.Warn("background tasks did not stop in time", "running", s.group.Running(), "error", err)
	}
	s.queue.Close()

	summary := s.engine.Summary()
	attrs := make([]any, 0, 2*len(summary)+6)
	attrs = append(attrs,
		"undelivered_events", s.queue.Len(),
		"ids_issued", s.engine.IDsIssued(),
		"logged_activities", s.engine.LoggedActivities(),
	)
	for status, n := range summary {
		attrs = append(attrs, string(status), n)
	}
	s.logger.Info("simulator stopped", attrs...)

	if s.logCloser != nil {
		s.logCloser.Close()
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	logger := s.logger.With("component", "http")

	mux.Handle("GET /healthz", handlers.NewHealthHandler(s.clock))
	mux.Handle("GET /v0.1/config", handlers.NewConfigHandler(s))

	mux.Handle("GET /v0.1/actions", handlers.NewListActionsHandler(s))
	mux.Handle("GET /v0.1/activities", handlers.NewListActivitiesHandler(s))
	mux.Handle("POST /v0.1/actions/perform", handlers.NewPerformActionHandler(logger, s.executor))

	mux.Handle("POST /v0.1/activities/start", handlers.NewStartActivityHandler(logger, s.engine))
	mux.Handle("POST /v0.1/activities/cancel", handlers.NewCancelActivityHandler(logger, s.engine))
	mux.Handle("GET /v0.1/activities/{id}/status", handlers.NewActivityStatusHandler(logger, s.engine))
	mux.Handle("GET /v0.1/activities/{id}/data", handlers.NewActivityDataHandler(logger, s.engine))
	mux.Handle("GET /v0.1/activities/{id}/logs", handlers.NewActivityLogsHandler(logger, s.engine))

	mux.Handle("GET /events", handlers.NewEventStreamHandler(logger, s.queue, s.heartbeat))

	if s.scrape != nil {
		mux.Handle("GET /metrics", s.scrape.Handler())
	}
}
