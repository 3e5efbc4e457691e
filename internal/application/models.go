package application

import (
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// AvailabilityQuery describes a proposed slot. Exactly one of SpaceID and
// FreeLocation must be set.
type AvailabilityQuery struct {
	Date          time.Time
	SpaceID       string
	FreeLocation  string
	From          scheduler.TimeOfDay
	To            scheduler.TimeOfDay
	BufferBefore  int
	BufferAfter   int
	IgnoreEventID string
}

// ConflictItem describes an existing booking that collides with a query.
// From and To are the buffered bounds of the existing booking.
type ConflictItem struct {
	EventID      string
	Title        string
	Status       persistence.EventStatus
	SpaceID      string
	Date         time.Time
	From         scheduler.TimeOfDay
	To           scheduler.TimeOfDay
	Internal     bool
	Priority     int
	BufferBefore int
	BufferAfter  int
}

// AvailabilityResult is the outcome of an availability check.
type AvailabilityResult struct {
	Available bool
	Conflicts []ConflictItem
}

// OccupancyBlock is one raw, unbuffered entry of a space's day timeline.
type OccupancyBlock struct {
	EventID string
	Title   string
	From    scheduler.TimeOfDay
	To      scheduler.TimeOfDay
	Status  persistence.EventStatus
}

// CapacityQuery describes the technical demand of a proposed slot.
type CapacityQuery struct {
	Date          time.Time
	From          scheduler.TimeOfDay
	To            scheduler.TimeOfDay
	BufferBefore  int
	BufferAfter   int
	Mode          scheduler.TechSupportMode
	IgnoreEventID string
}

// BlockUsage reports the load of one capacity block.
type BlockUsage struct {
	From      scheduler.TimeOfDay
	To        scheduler.TimeOfDay
	Used      int
	Available int
}

// TechEvent is a roster entry for an event that needs technical staff.
type TechEvent struct {
	EventID      string
	Title        string
	Status       persistence.EventStatus
	SpaceID      *string
	FreeLocation *string
	From         scheduler.TimeOfDay
	To           scheduler.TimeOfDay
	BufferBefore int
	BufferAfter  int
	Mode         scheduler.TechSupportMode
	Blocks       []scheduler.TimeOfDay
}

// RebookTarget is the slot a displaced event moves to.
type RebookTarget struct {
	Date    time.Time
	From    scheduler.TimeOfDay
	To      scheduler.TimeOfDay
	SpaceID string
}

// DecisionRequest resolves an open priority conflict. Any decision other than
// REBOOK_OTHER keeps the displaced event where it is.
type DecisionRequest struct {
	Code      string
	Decision  persistence.ConflictDecision
	Target    *RebookTarget
	DecidedBy string
	Reason    string
}

// DisplaceResult lists the conflicts registered for a high priority event and
// the colliding bookings it could not displace.
type DisplaceResult struct {
	Conflicts []persistence.PriorityConflict
	Blocking  []ConflictItem
}

// ScheduleChange is the audit record of a rebooked event.
type ScheduleChange struct {
	Event    persistence.Event
	Previous persistence.Event
	Actor    string
}

// SpaceConflictRejection is the audit record of a move refused for lack of availability.
type SpaceConflictRejection struct {
	EventID   string
	Actor     string
	SpaceID   string
	Window    scheduler.TimeWindow
	Conflicts []ConflictItem
}

// TechCapacityRejection is the audit record of a move refused for lack of technical staff.
type TechCapacityRejection struct {
	EventID string
	Actor   string
	Window  scheduler.TimeWindow
	Blocks  []scheduler.TimeOfDay
}

// ConflictCreated is the domain event emitted for every newly registered conflict.
type ConflictCreated struct {
	Conflict  persistence.PriorityConflict
	HighEvent persistence.Event
	Displaced persistence.Event
}
