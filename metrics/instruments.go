package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "instrumentsim"

// Instruments holds every metric the simulator records.
type Instruments struct {
	ActionsCompleted    CounterVec // labels: status
	ActivitiesStarted   CounterVec // labels: activity_name, result
	ActivityTransitions CounterVec // labels: activity_name, status
	ActivitiesByStatus  GaugeVec   // labels: status
	ActivityCancels     Counter
	EventsPublished     CounterVec // labels: event
	QueueDepth          Gauge
	TasksRunning        Gauge
}

// NewInstruments creates all simulator metrics on reg.
func NewInstruments(reg Registry) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)

	if in.ActionsCompleted, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_completed_total",
		Help:      "Actions that finished, by outcome.",
	}, []string{"status"}); err != nil {
		return nil, err
	}
	if in.ActivitiesStarted, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activities_started_total",
		Help:      "Activity start requests, by activity name and result.",
	}, []string{"activity_name", "result"}); err != nil {
		return nil, err
	}
	if in.ActivityTransitions, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_transitions_total",
		Help:      "Activity status transitions, by activity name and new status.",
	}, []string{"activity_name", "status"}); err != nil {
		return nil, err
	}
	if in.ActivitiesByStatus, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "activities",
		Help:      "Activities in the registry, by current status.",
	}, []string{"status"}); err != nil {
		return nil, err
	}
	if in.ActivityCancels, err = reg.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_cancels_total",
		Help:      "Accepted cancel requests.",
	}); err != nil {
		return nil, err
	}
	if in.EventsPublished, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Events appended to the event queue, by event name.",
	}, []string{"event"}); err != nil {
		return nil, err
	}
	if in.QueueDepth, err = reg.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_queue_depth",
		Help:      "Events waiting to be delivered to a subscriber.",
	}); err != nil {
		return nil, err
	}
	if in.TasksRunning, err = reg.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "background_tasks_running",
		Help:      "Timer and executor goroutines currently running.",
	}); err != nil {
		return nil, err
	}
	return &in, nil
}

// Nop returns Instruments backed by NopRegistry.
func Nop() *Instruments {
	in, _ := NewInstruments(NopRegistry{})
	return in
}
