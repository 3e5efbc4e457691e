package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

var (
	spaceCounter uint64
	eventCounter uint64
)

var (
	referenceTime = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	referenceDate = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar day fixture events are scheduled on.
func ReferenceDate() time.Time {
	return referenceDate
}

// ----------------------------- Space fixtures -----------------------------

// SpaceFixture represents a deterministic venue record.
type SpaceFixture struct {
	ID       string
	Name     string
	Capacity int
	Active   bool
}

// SpaceOption configures the generated space fixture.
type SpaceOption func(*SpaceFixture)

// NewSpaceFixture returns an active space fixture with optional overrides.
func NewSpaceFixture(opts ...SpaceOption) SpaceFixture {
	idx := atomic.AddUint64(&spaceCounter, 1)
	fixture := SpaceFixture{
		ID:       fmt.Sprintf("space-%03d", idx),
		Name:     fmt.Sprintf("Space %03d", idx),
		Capacity: 50 + int(idx%5)*10,
		Active:   true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSpaceID overrides the generated space ID.
func WithSpaceID(id string) SpaceOption {
	return func(f *SpaceFixture) {
		f.ID = id
		f.Name = "Space " + id
	}
}

// WithSpaceInactive marks the space as withdrawn from booking.
func WithSpaceInactive() SpaceOption {
	return func(f *SpaceFixture) {
		f.Active = false
	}
}

// Persistence returns the fixture as a persistence.Space value.
func (f SpaceFixture) Persistence() persistence.Space {
	return persistence.Space{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Active:    f.Active,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic booking request. Fixtures default
// to a reserved 10:00-12:00 event at a free location on ReferenceDate.
type EventFixture struct {
	ID           string
	Title        string
	SpaceID      *string
	FreeLocation *string
	Date         time.Time
	From         scheduler.TimeOfDay
	To           scheduler.TimeOfDay
	BufferBefore int
	BufferAfter  int
	Status       persistence.EventStatus
	Priority     int
	Internal     bool
	TechSupport  bool
	TechMode     scheduler.TechSupportMode
	ModifiedBy   string
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	location := "Courtyard"
	fixture := EventFixture{
		ID:           fmt.Sprintf("event-%03d", idx),
		Title:        fmt.Sprintf("Event %03d", idx),
		FreeLocation: &location,
		Date:         referenceDate,
		From:         scheduler.NewTimeOfDay(10, 0),
		To:           scheduler.NewTimeOfDay(12, 0),
		Status:       persistence.EventStatusReserved,
		ModifiedBy:   "fixtures",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// AtSpace books the event into a catalogued space.
func AtSpace(spaceID string) EventOption {
	return func(f *EventFixture) {
		id := spaceID
		f.SpaceID = &id
		f.FreeLocation = nil
	}
}

// AtFreeLocation places the event at an uncatalogued location.
func AtFreeLocation(location string) EventOption {
	return func(f *EventFixture) {
		value := location
		f.FreeLocation = &value
		f.SpaceID = nil
	}
}

// OnDate moves the event to another day.
func OnDate(date time.Time) EventOption {
	return func(f *EventFixture) {
		f.Date = scheduler.StartOfDay(date)
	}
}

// Between sets the raw slot as "HH:MM" literals.
func Between(from, to string) EventOption {
	return func(f *EventFixture) {
		f.From = scheduler.MustParseTimeOfDay(from)
		f.To = scheduler.MustParseTimeOfDay(to)
	}
}

// WithBuffers sets the setup and teardown minutes around the slot.
func WithBuffers(before, after int) EventOption {
	return func(f *EventFixture) {
		f.BufferBefore = before
		f.BufferAfter = after
	}
}

// WithStatus overrides the workflow status.
func WithStatus(status persistence.EventStatus) EventOption {
	return func(f *EventFixture) {
		f.Status = status
	}
}

// WithPriority sets the event priority. Larger values win.
func WithPriority(priority int) EventOption {
	return func(f *EventFixture) {
		f.Priority = priority
	}
}

// Internal marks the event as an internal booking.
func Internal() EventOption {
	return func(f *EventFixture) {
		f.Internal = true
	}
}

// WithTechSupport requests technical support in the given mode.
func WithTechSupport(mode scheduler.TechSupportMode) EventOption {
	return func(f *EventFixture) {
		f.TechSupport = true
		f.TechMode = mode
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:                  f.ID,
		Title:               f.Title,
		SpaceID:             copyStringPtr(f.SpaceID),
		FreeLocation:        copyStringPtr(f.FreeLocation),
		Date:                f.Date,
		From:                f.From,
		To:                  f.To,
		BufferBefore:        f.BufferBefore,
		BufferAfter:         f.BufferAfter,
		Status:              f.Status,
		Priority:            f.Priority,
		Internal:            f.Internal,
		RequiresTechSupport: f.TechSupport,
		TechSupportMode:     f.TechMode,
		LastModifiedBy:      f.ModifiedBy,
		CreatedAt:           referenceTime,
		UpdatedAt:           referenceTime,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
