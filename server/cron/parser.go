package cron

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	triggerSeparator      = ";"
	activitySeparator     = ":"
	activityListSeparator = ","
)

// parser accepts standard 5-field expressions plus descriptors such as @hourly
// and @every 10m.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TriggerSpec is a set of activities started together on a cron schedule.
type TriggerSpec struct {
	Activities []string
	CronSpec   string
	// DeadlineAfter, if positive, gives each started activity a deadline this far
	// after the trigger fires.
	DeadlineAfter time.Duration
}

// ParseTriggerSpecs parses a multi-trigger specification string into individual trigger specs.
// The format is: activity1,activity2:cron_expression;activity3:cron_expression2
//
// Example:
//
//	"SCAN,BUILD:*/5 * * * *;SCAN:@hourly"
//
// Returns an error if:
//   - Any trigger is missing activities or cron expression
//   - Any activity name is not in available
//   - Any cron expression is invalid
//   - Any trigger has duplicate activities
func ParseTriggerSpecs(spec string, available []string) ([]TriggerSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec cannot be empty")
	}

	triggerStrs := strings.Split(spec, triggerSeparator)
	specs := make([]TriggerSpec, 0, len(triggerStrs))

	for _, triggerStr := range triggerStrs {
		triggerStr = strings.TrimSpace(triggerStr)
		if triggerStr == "" {
			continue // trailing semicolon
		}

		triggerSpec, err := parseSingleTrigger(triggerStr, available)
		if err != nil {
			return nil, err
		}
		specs = append(specs, triggerSpec)
	}

	if len(specs) == 0 {
		return nil, errors.New("no valid triggers found in cron spec")
	}
	return specs, nil
}

// parseSingleTrigger parses one "activities:cron" pair. Only the first colon
// separates the two, so descriptors like "@every 1h30m" pass through intact.
func parseSingleTrigger(triggerStr string, available []string) (TriggerSpec, error) {
	activitiesStr, cronSpec, found := strings.Cut(triggerStr, activitySeparator)
	if !found {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: expected format 'activities:cron', got '%s'", triggerStr)
	}
	activitiesStr = strings.TrimSpace(activitiesStr)
	cronSpec = strings.TrimSpace(cronSpec)

	if activitiesStr == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing activities in '%s'", triggerStr)
	}
	if cronSpec == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing cron schedule in '%s'", triggerStr)
	}

	activities, err := parseActivities(strings.Split(activitiesStr, activityListSeparator), available)
	if err != nil {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec '%s': %w", triggerStr, err)
	}

	if _, err := parser.Parse(cronSpec); err != nil {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: invalid cron expression in '%s': %w", triggerStr, err)
	}

	return TriggerSpec{
		Activities: activities,
		CronSpec:   cronSpec,
	}, nil
}

// NewTriggerSpec validates a single trigger given in structured form.
func NewTriggerSpec(activities []string, cronSpec string, deadlineAfter time.Duration, available []string) (TriggerSpec, error) {
	names, err := parseActivities(activities, available)
	if err != nil {
		return TriggerSpec{}, err
	}
	if _, err := parser.Parse(cronSpec); err != nil {
		return TriggerSpec{}, fmt.Errorf("invalid cron expression '%s': %w", cronSpec, err)
	}
	if deadlineAfter < 0 {
		return TriggerSpec{}, errors.New("deadline offset must not be negative")
	}
	return TriggerSpec{
		Activities:    names,
		CronSpec:      cronSpec,
		DeadlineAfter: deadlineAfter,
	}, nil
}

func parseActivities(raw []string, available []string) ([]string, error) {
	activities := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, a := range raw {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate activity '%s'", a)
		}
		seen[a] = true

		if !slices.Contains(available, a) {
			return nil, fmt.Errorf("unknown activity '%s' (available: %s)", a, strings.Join(available, ", "))
		}
		activities = append(activities, a)
	}

	if len(activities) == 0 {
		return nil, errors.New("no activities")
	}
	return activities, nil
}
