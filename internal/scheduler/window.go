package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a window would start at or after its end.
var ErrInvalidRange = errors.New("scheduler: invalid time range")

// TimeWindow is an immutable interval [Start, End) on a single calendar day.
type TimeWindow struct {
	date  time.Time
	start TimeOfDay
	end   TimeOfDay
}

// NewTimeWindow builds a window for date spanning [from, to).
func NewTimeWindow(date time.Time, from, to TimeOfDay) (TimeWindow, error) {
	if date.IsZero() {
		return TimeWindow{}, fmt.Errorf("%w: date is required", ErrInvalidRange)
	}
	if !from.Valid() || !to.Valid() {
		return TimeWindow{}, fmt.Errorf("%w: %d-%d outside the day", ErrInvalidRange, from, to)
	}
	if from >= to {
		return TimeWindow{}, fmt.Errorf("%w: %s must be before %s", ErrInvalidRange, from, to)
	}
	return TimeWindow{date: StartOfDay(date), start: from, end: to}, nil
}

// MustTimeWindow is NewTimeWindow for values known to be valid.
func MustTimeWindow(date time.Time, from, to TimeOfDay) TimeWindow {
	w, err := NewTimeWindow(date, from, to)
	if err != nil {
		panic(err)
	}
	return w
}

// WithBuffers widens the window by before/after minutes. Both edges are
// clamped to the calendar day: the window never wraps into a neighbouring day,
// so a late event reports an effective end of 24:00.
func (w TimeWindow) WithBuffers(before, after int) TimeWindow {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	return TimeWindow{
		date:  w.date,
		start: w.start.Add(-before).Clamp(),
		end:   w.end.Add(after).Clamp(),
	}
}

// Overlaps reports whether the two windows share any instant. Windows are
// half-open, so touching edges do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	if w.IsZero() || other.IsZero() {
		return false
	}
	return w.StartTime().Before(other.EndTime()) && other.StartTime().Before(w.EndTime())
}

// IsZero reports whether the window was never initialised.
func (w TimeWindow) IsZero() bool {
	return w.date.IsZero()
}

// Date returns the calendar day of the window.
func (w TimeWindow) Date() time.Time { return w.date }

// Start returns the inclusive start of the window.
func (w TimeWindow) Start() TimeOfDay { return w.start }

// End returns the exclusive end of the window.
func (w TimeWindow) End() TimeOfDay { return w.end }

// StartTime returns the absolute instant the window begins.
func (w TimeWindow) StartTime() time.Time { return w.start.On(w.date) }

// EndTime returns the absolute instant the window ends.
func (w TimeWindow) EndTime() time.Time { return w.end.On(w.date) }

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.end-w.start) * time.Minute
}

// String renders the window as "YYYY-MM-DD HH:MM-HH:MM".
func (w TimeWindow) String() string {
	return fmt.Sprintf("%s %s-%s", FormatDate(w.date), w.start, w.end)
}
