package persistence

import (
	"time"

	"github.com/example/venue-scheduler/internal/scheduler"
)

// EventStatus is the workflow state of a booking request.
type EventStatus string

const (
	EventStatusRequested EventStatus = "SOLICITADO"
	EventStatusInReview  EventStatus = "EN_REVISION"
	EventStatusReserved  EventStatus = "RESERVADO"
	EventStatusApproved  EventStatus = "APROBADO"
	EventStatusRejected  EventStatus = "RECHAZADO"
)

// BlockingStatuses lists the statuses that claim a slot for occupancy and
// technical capacity purposes.
func BlockingStatuses() []EventStatus {
	return []EventStatus{EventStatusInReview, EventStatusReserved, EventStatusApproved}
}

// Blocking reports whether events in this status occupy their slot.
func (s EventStatus) Blocking() bool {
	switch s {
	case EventStatusInReview, EventStatusReserved, EventStatusApproved:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s.Blocking() || s == EventStatusRequested || s == EventStatusRejected
}

// Space is a bookable physical venue.
type Space struct {
	ID        string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is a booking request for a space or a free-text location.
// Exactly one of SpaceID and FreeLocation is set.
type Event struct {
	ID                  string
	Title               string
	SpaceID             *string
	FreeLocation        *string
	Date                time.Time
	From                scheduler.TimeOfDay
	To                  scheduler.TimeOfDay
	BufferBefore        int
	BufferAfter         int
	Status              EventStatus
	Priority            int
	Internal            bool
	RequiresTechSupport bool
	TechSupportMode     scheduler.TechSupportMode
	RequiresRebooking   bool
	LastModifiedBy      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Window returns the raw scheduled window of the event.
func (e Event) Window() (scheduler.TimeWindow, error) {
	return scheduler.NewTimeWindow(e.Date, e.From, e.To)
}

// Booking converts the event into the scheduler representation used for
// overlap detection.
func (e Event) Booking() (scheduler.Booking, error) {
	w, err := e.Window()
	if err != nil {
		return scheduler.Booking{}, err
	}
	return scheduler.Booking{ID: e.ID, Window: w, BufferBefore: e.BufferBefore, BufferAfter: e.BufferAfter}, nil
}

// TechCapacityConfig sizes the shared technical support pool.
type TechCapacityConfig struct {
	ID                   string
	BlockMinutes         int
	DefaultSlotsPerBlock int
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ConflictStatus is the lifecycle state of a priority conflict.
type ConflictStatus string

const (
	ConflictStatusOpen   ConflictStatus = "OPEN"
	ConflictStatusClosed ConflictStatus = "CLOSED"
)

// ConflictDecision records how a priority conflict was resolved.
type ConflictDecision string

const (
	ConflictDecisionKeep        ConflictDecision = "KEEP"
	ConflictDecisionRebookOther ConflictDecision = "REBOOK_OTHER"
)

// PriorityConflict tracks a lower priority event displaced by a higher priority one.
type PriorityConflict struct {
	ID               string
	Code             string
	HighEventID      string
	DisplacedEventID string
	SpaceID          *string
	ConflictDate     time.Time
	From             scheduler.TimeOfDay
	To               scheduler.TimeOfDay
	Status           ConflictStatus
	Decision         ConflictDecision
	CreatedBy        string
	DecisionBy       string
	Reason           string
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

// AuditAction classifies audit log entries.
type AuditAction string

const (
	AuditActionScheduleChange     AuditAction = "SCHEDULE_CHANGE"
	AuditActionSpaceConflict      AuditAction = "SPACE_CONFLICT"
	AuditActionTechCapacityReject AuditAction = "TECH_CAPACITY_REJECT"
)

// AuditEntry is an append-only history record for an event.
type AuditEntry struct {
	ID        string
	EventID   string
	Action    AuditAction
	Actor     string
	Detail    map[string]string
	CreatedAt time.Time
}
