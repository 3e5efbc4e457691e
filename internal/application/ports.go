package application

import (
	"context"

	"github.com/example/venue-scheduler/internal/persistence"
)

// EventFinder captures the event queries the engine runs.
type EventFinder interface {
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
}

// CapacityConfigSource provides the active technical capacity configuration.
type CapacityConfigSource interface {
	ActiveTechCapacityConfig(ctx context.Context) (persistence.TechCapacityConfig, error)
}

// AuditSink appends schedule history. Calls are best effort: a failure is
// logged and never undoes the operation that produced the record.
type AuditSink interface {
	RecordScheduleChange(ctx context.Context, change ScheduleChange) error
	RecordSpaceConflict(ctx context.Context, rejection SpaceConflictRejection) error
	RecordTechCapacityReject(ctx context.Context, rejection TechCapacityRejection) error
}

// ConflictPublisher notifies downstream subscribers about new conflicts.
type ConflictPublisher interface {
	PublishConflictCreated(ctx context.Context, event ConflictCreated) error
}

// Locker serialises rebooking decisions that target the same space and day.
// Acquire blocks until the lock is held or fails; release frees it. A lock
// still held elsewhere when the wait ends yields ErrLockNotAcquired.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
