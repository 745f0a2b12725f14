// Package handlers provides HTTP handlers for the simulator API.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"context"

	"github.com/nomis52/instrumentsim/action"
	"github.com/nomis52/instrumentsim/activity"
	"github.com/nomis52/instrumentsim/config"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/logging"
)

// ConfigProvider provides access to the effective configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// CatalogProvider lists the advertised action and activity names.
type CatalogProvider interface {
	Actions() []string
	Activities() []string
}

// ActionPerformer accepts fire-and-forget actions.
type ActionPerformer interface {
	Perform(name string, options []action.Option) error
}

// ActivityStarter starts activities.
type ActivityStarter interface {
	Start(name string, options []activity.Option, deadline string) (string, error)
}

// ActivityCanceler cancels activities.
type ActivityCanceler interface {
	Cancel(id, reason string) error
}

// ActivityStatusProvider provides access to activity records.
type ActivityStatusProvider interface {
	Status(id string) (activity.Record, error)
}

// ActivityDataProvider provides access to activity data products.
type ActivityDataProvider interface {
	Data(id string) ([]string, error)
}

// ActivityLogProvider provides access to captured activity logs.
type ActivityLogProvider interface {
	Logs(id string) ([]logging.LogEntry, error)
}

// EventSource yields queued events, blocking until one is available.
type EventSource interface {
	Next(ctx context.Context) (events.Envelope, error)
}
