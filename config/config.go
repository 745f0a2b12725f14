// Package config loads the simulator configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/nomis52/instrumentsim/logging"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr = ":8080"

	// Default timings
	defaultActionDelay     = 200 * time.Millisecond
	defaultPendingDelay    = 200 * time.Millisecond
	defaultProgressDelay   = 500 * time.Millisecond
	defaultShutdownTimeout = 10 * time.Second

	// Default catalog settings
	defaultFailingAction  = "CALIBRATE"
	defaultFailureMessage = "Calibration target not found"

	// Default monitoring settings
	defaultJobName       = "instrumentsim"
	defaultPushInterval  = 15 * time.Second
)

var (
	defaultActions    = []string{"HOME", "MOVE", "CALIBRATE"}
	defaultActivities = []string{"BUILD", "SCAN"}
)

// Config represents the complete simulator configuration.
type Config struct {
	Listener   ListenerConfig   `yaml:"listener"`
	Timing     TimingConfig     `yaml:"timing"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Logging    logging.Config   `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedules  []Schedule       `yaml:"schedules"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// TLSCert and TLSKey enable HTTPS when both are set. The files are re-read
	// when they change on disk.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// TLSEnabled reports whether a certificate and key are configured.
func (l ListenerConfig) TLSEnabled() bool {
	return l.TLSCert != "" && l.TLSKey != ""
}

// TimingConfig controls how long simulated work takes.
type TimingConfig struct {
	// ActionDelay is the time between accepting an action and publishing its outcome.
	ActionDelay time.Duration `yaml:"action_delay"`
	// PendingDelay is how long an activity stays PENDING.
	PendingDelay time.Duration `yaml:"pending_delay"`
	// ProgressDelay is how long an activity stays IN_PROGRESS.
	ProgressDelay time.Duration `yaml:"progress_delay"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server and timers.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CatalogConfig lists the advertised actions and activities.
type CatalogConfig struct {
	Actions    []string `yaml:"actions"`
	Activities []string `yaml:"activities"`
	// FailingAction always completes with ACTION_FAILURE. Matched case-insensitively.
	FailingAction  string `yaml:"failing_action"`
	FailureMessage string `yaml:"failure_message"`
}

// LifecycleConfig tunes the activity state machine.
type LifecycleConfig struct {
	// StrictTerminalStates drops writes to COMPLETED or CANCELED activities
	// instead of letting the last writer win.
	StrictTerminalStates bool `yaml:"strict_terminal_states"`
}

// MonitoringConfig holds metrics settings.
type MonitoringConfig struct {
	// MetricsEnabled exposes /metrics. Defaults to true.
	MetricsEnabled *bool `yaml:"metrics_enabled"`
	// RemoteWriteURL, if set, also pushes metrics to a Prometheus remote write endpoint.
	RemoteWriteURL string `yaml:"remote_write_url"`
	// MetricsPrefix is prepended to pushed metric names, which already carry
	// the instrumentsim namespace.
	MetricsPrefix string        `yaml:"metrics_prefix"`
	JobName       string        `yaml:"jobname"`
	Instance      string        `yaml:"instance"`
	PushInterval  time.Duration `yaml:"push_interval"`
}

// MetricsOn reports whether the /metrics endpoint is served.
func (m MonitoringConfig) MetricsOn() bool {
	return m.MetricsEnabled == nil || *m.MetricsEnabled
}

// Schedule starts a set of activities on a cron schedule.
type Schedule struct {
	// The activities to start
	Activities []string `yaml:"activities"`
	// The cron spec to start the activities at
	Schedule string `yaml:"schedule"`
	// DeadlineAfter, if set, gives each started activity a deadline this far in the future.
	DeadlineAfter time.Duration `yaml:"deadline_after"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultAddr
	}
	if c.Timing.ActionDelay == 0 {
		c.Timing.ActionDelay = defaultActionDelay
	}
	if c.Timing.PendingDelay == 0 {
		c.Timing.PendingDelay = defaultPendingDelay
	}
	if c.Timing.ProgressDelay == 0 {
		c.Timing.ProgressDelay = defaultProgressDelay
	}
	if c.Timing.ShutdownTimeout == 0 {
		c.Timing.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(c.Catalog.Actions) == 0 {
		c.Catalog.Actions = slices.Clone(defaultActions)
	}
	if len(c.Catalog.Activities) == 0 {
		c.Catalog.Activities = slices.Clone(defaultActivities)
	}
	if c.Catalog.FailingAction == "" {
		c.Catalog.FailingAction = defaultFailingAction
	}
	if c.Catalog.FailureMessage == "" {
		c.Catalog.FailureMessage = defaultFailureMessage
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Monitoring.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			c.Monitoring.Instance = host
		}
	}
	if c.Monitoring.PushInterval == 0 {
		c.Monitoring.PushInterval = defaultPushInterval
	}
	c.Logging.SetDefaults()
}

// Validate performs basic validation on the configuration. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listener.Addr == "" {
		errs = append(errs, errors.New("listener addr is required"))
	}
	if (c.Listener.TLSCert == "") != (c.Listener.TLSKey == "") {
		errs = append(errs, errors.New("listener tls_cert and tls_key must be set together"))
	}

	for name, d := range map[string]time.Duration{
		"action_delay":     c.Timing.ActionDelay,
		"pending_delay":    c.Timing.PendingDelay,
		"progress_delay":   c.Timing.ProgressDelay,
		"shutdown_timeout": c.Timing.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("timing %s must not be negative", name))
		}
	}

	errs = append(errs, validateNames("catalog actions", c.Catalog.Actions)...)
	errs = append(errs, validateNames("catalog activities", c.Catalog.Activities)...)

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.Monitoring.PushInterval < 0 {
		errs = append(errs, errors.New("monitoring push_interval must not be negative"))
	}

	for i, s := range c.Schedules {
		if len(s.Activities) == 0 {
			errs = append(errs, fmt.Errorf("schedules[%d]: no activities", i))
		}
		for _, name := range s.Activities {
			if !slices.Contains(c.Catalog.Activities, name) {
				errs = append(errs, fmt.Errorf("schedules[%d]: unknown activity %q", i, name))
			}
		}
		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("schedules[%d]: invalid schedule %q: %w", i, s.Schedule, err))
		}
		if s.DeadlineAfter < 0 {
			errs = append(errs, fmt.Errorf("schedules[%d]: deadline_after must not be negative", i))
		}
	}

	return errors.Join(errs...)
}

func validateNames(what string, names []string) []error {
	var errs []error
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		switch {
		case n == "":
			errs = append(errs, fmt.Errorf("%s: empty name", what))
		case seen[n]:
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", what, n))
		}
		seen[n] = true
	}
	return errs
}

// LoadConfig reads the YAML config file at the given path, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
