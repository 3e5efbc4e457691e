package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// EndOfDay is the sentinel time-of-day used for windows clamped at midnight.
// It renders as "24:00".
const EndOfDay TimeOfDay = MinutesPerDay

// DateLayout is the canonical calendar date representation.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall clock time expressed as minutes since midnight.
// Valid values are in [0, EndOfDay].
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour and minute pair.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (seconds are accepted and ignored when zero).
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("scheduler: invalid time of day %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("scheduler: invalid minute in %q", value)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("scheduler: seconds are not supported in %q", value)
		}
	}
	t := NewTimeOfDay(hour, minute)
	if hour < 0 || !t.Valid() {
		return 0, fmt.Errorf("scheduler: time of day %q out of range", value)
	}
	return t, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether t lies within [00:00, 24:00].
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// Add shifts t by the given number of minutes without clamping.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// Clamp restricts t to [00:00, 24:00].
func (t TimeOfDay) Clamp() TimeOfDay {
	if t < 0 {
		return 0
	}
	if t > EndOfDay {
		return EndOfDay
	}
	return t
}

// On returns the instant t on the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return StartOfDay(date).Add(time.Duration(t) * time.Minute)
}

// String renders t as "HH:MM"; the end of day renders as "24:00".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// StartOfDay truncates t to midnight of its calendar date in UTC. The engine
// treats dates as civil dates, so the zone of the input is discarded.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" civil date.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: invalid date %q", value)
	}
	return d, nil
}

// FormatDate renders the civil date of t.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return StartOfDay(t).Format(DateLayout)
}
