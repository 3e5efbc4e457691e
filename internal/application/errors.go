package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/scheduler"
)

// MaxBufferMinutes bounds the setup and teardown margins of an event.
const MaxBufferMinutes = 240

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyClosed is returned when a decision targets a conflict that was already resolved.
	ErrAlreadyClosed = errors.New("application: priority conflict already closed")
	// ErrBusy is returned when another decision holds the slot being rebooked.
	ErrBusy = errors.New("application: slot is being rebooked by another request")
	// ErrLockNotAcquired is returned by a Locker when the lock stays held by
	// another owner past the wait deadline.
	ErrLockNotAcquired = errors.New("lock: not acquired")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// AvailabilityConflictError rejects a slot that collides with existing bookings.
// Result lists every colliding event.
type AvailabilityConflictError struct {
	Result AvailabilityResult
}

func (e *AvailabilityConflictError) Error() string {
	if e == nil {
		return ""
	}
	ids := make([]string, 0, len(e.Result.Conflicts))
	for _, item := range e.Result.Conflicts {
		ids = append(ids, item.EventID)
	}
	return fmt.Sprintf("application: slot unavailable, conflicts with %s", strings.Join(ids, ", "))
}

// TechCapacityExceededError rejects a request whose technical demand does not
// fit in one or more blocks.
type TechCapacityExceededError struct {
	Date   time.Time
	Blocks []scheduler.TimeOfDay
}

func (e *TechCapacityExceededError) Error() string {
	if e == nil {
		return ""
	}
	labels := make([]string, len(e.Blocks))
	for i, block := range e.Blocks {
		labels[i] = block.String()
	}
	return fmt.Sprintf("application: technical capacity exceeded on %s at %s",
		scheduler.FormatDate(e.Date), strings.Join(labels, ", "))
}

// ValidateBuffers checks that both margins lie within [0, MaxBufferMinutes].
func ValidateBuffers(before, after int) *ValidationError {
	vErr := &ValidationError{}
	if before < 0 || before > MaxBufferMinutes {
		vErr.add("buffer_before", fmt.Sprintf("must be between 0 and %d minutes", MaxBufferMinutes))
	}
	if after < 0 || after > MaxBufferMinutes {
		vErr.add("buffer_after", fmt.Sprintf("must be between 0 and %d minutes", MaxBufferMinutes))
	}
	return vErr
}

// validateSlot checks the date and time range shared by every engine query.
func validateSlot(date time.Time, from, to scheduler.TimeOfDay) *ValidationError {
	vErr := &ValidationError{}
	if date.IsZero() {
		vErr.add("date", "is required")
	}
	switch {
	case !from.Valid():
		vErr.add("from", "must be a time of day")
	case !to.Valid():
		vErr.add("to", "must be a time of day")
	case to <= from:
		vErr.add("to", "must be after from")
	}
	return vErr
}
