// Package clock provides the time source and timestamp formatting used by the simulator.
//
// Every timestamp that leaves the process is RFC3339 in UTC with second precision and a
// "Z" suffix, e.g. "2024-05-01T12:30:00Z".
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyTimestamp is returned by ParseTimestamp for blank input.
var ErrEmptyTimestamp = errors.New("empty timestamp")

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by time.Now.
type Real struct{}

// Now returns the current wall clock time.
func (Real) Now() time.Time {
	return time.Now()
}

// Func adapts a function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Format renders t as an RFC3339 UTC timestamp truncated to whole seconds.
func Format(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// Timestamp returns the current time of c formatted with Format.
func Timestamp(c Clock) string {
	return Format(c.Now())
}

// layouts accepted by ParseTimestamp, tried in order. Layouts without a zone
// are interpreted as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"20060102T150405Z0700",
	"20060102T150405",
	"2006-01-02",
	"20060102",
}

// ParseTimestamp parses an ISO-8601 date or date-time. Offsets are honoured and the
// result is returned in UTC; values without an offset are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	// Lowercase "t" and "z" are legal ISO-8601.
	normalized := strings.ToUpper(s)
	for _, layout := range layouts {
		t, err := time.Parse(layout, normalized)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised ISO-8601 timestamp %q", s)
}
