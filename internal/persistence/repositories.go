package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries. Zero fields do not filter.
type EventFilter struct {
	SpaceID         string
	Date            time.Time
	Statuses        []EventStatus
	ExcludeID       string
	TechSupportOnly bool
}

// EventRepository stores booking requests. ListEvents orders by start time, then id.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// SpaceRepository stores the venue catalog.
type SpaceRepository interface {
	CreateSpace(ctx context.Context, space Space) error
	GetSpace(ctx context.Context, id string) (Space, error)
}

// TechCapacityConfigRepository stores capacity configurations. At most one is active;
// saving an active configuration deactivates the others. ActiveTechCapacityConfig
// returns ErrNotFound when none is active.
type TechCapacityConfigRepository interface {
	SaveTechCapacityConfig(ctx context.Context, config TechCapacityConfig) error
	ActiveTechCapacityConfig(ctx context.Context) (TechCapacityConfig, error)
}

// ConflictFilter narrows priority conflict queries. Zero fields do not filter.
type ConflictFilter struct {
	HighEventID      string
	DisplacedEventID string
	Status           ConflictStatus
}

// ConflictRepository stores priority conflicts. Conflicts are never deleted.
type ConflictRepository interface {
	CreateConflict(ctx context.Context, conflict PriorityConflict) error
	UpdateConflict(ctx context.Context, conflict PriorityConflict) error
	GetConflictByCode(ctx context.Context, code string) (PriorityConflict, error)
	FindOpenConflict(ctx context.Context, highEventID, displacedEventID string) (PriorityConflict, error)
	ListConflicts(ctx context.Context, filter ConflictFilter) ([]PriorityConflict, error)
	CountConflictCodes(ctx context.Context, prefix string) (int, error)
}

// AuditRepository appends audit history.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, eventID string) ([]AuditEntry, error)
}

// Repositories bundles the repositories bound to a single storage scope.
type Repositories struct {
	Events       EventRepository
	Spaces       SpaceRepository
	TechCapacity TechCapacityConfigRepository
	Conflicts    ConflictRepository
	Audit        AuditRepository
}

// Transactor runs fn against repositories bound to one transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
