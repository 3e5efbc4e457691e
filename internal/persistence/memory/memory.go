// Package memory provides an in-process implementation of every persistence
// repository. Transactions operate on a snapshot that replaces the live state
// only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

type state struct {
	spaces    map[string]persistence.Space
	events    map[string]persistence.Event
	configs   map[string]persistence.TechCapacityConfig
	conflicts map[string]persistence.PriorityConflict
	audit     []persistence.AuditEntry
}

func newState() *state {
	return &state{
		spaces:    make(map[string]persistence.Space),
		events:    make(map[string]persistence.Event),
		configs:   make(map[string]persistence.TechCapacityConfig),
		conflicts: make(map[string]persistence.PriorityConflict),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, space := range s.spaces {
		c.spaces[id] = space
	}
	for id, event := range s.events {
		c.events[id] = cloneEvent(event)
	}
	for id, config := range s.configs {
		c.configs[id] = config
	}
	for code, conflict := range s.conflicts {
		c.conflicts[code] = cloneConflict(conflict)
	}
	c.audit = make([]persistence.AuditEntry, len(s.audit))
	for i, entry := range s.audit {
		c.audit[i] = cloneAudit(entry)
	}
	return c
}

// Storage is an in-memory persistence layer implementing persistence.Transactor.
type Storage struct {
	mu      sync.RWMutex
	current *state
	now     func() time.Time
}

// New returns an empty Storage. A nil clock defaults to time.Now.
func New(now func() time.Time) *Storage {
	if now == nil {
		now = time.Now
	}
	return &Storage{current: newState(), now: now}
}

// Repositories returns repositories operating on the live state.
func (s *Storage) Repositories() persistence.Repositories {
	return bundle(&repository{storage: s})
}

// WithinTx runs fn against a snapshot of the state and publishes the snapshot
// when fn succeeds. Transactions are serialised with every other access.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.current.clone()
	if err := fn(ctx, bundle(&repository{storage: s, tx: snapshot})); err != nil {
		return err
	}
	s.current = snapshot
	return nil
}

func bundle(r *repository) persistence.Repositories {
	return persistence.Repositories{Events: r, Spaces: r, TechCapacity: r, Conflicts: r, Audit: r}
}

// repository implements every persistence repository over either the live
// state (tx == nil) or a transaction snapshot.
type repository struct {
	storage *Storage
	tx      *state
}

func (r *repository) read(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.storage.mu.RLock()
	defer r.storage.mu.RUnlock()
	return fn(r.storage.current)
}

func (r *repository) write(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.storage.mu.Lock()
	defer r.storage.mu.Unlock()
	return fn(r.storage.current)
}

// --- SpaceRepository ---

func (r *repository) CreateSpace(_ context.Context, space persistence.Space) error {
	if strings.TrimSpace(space.ID) == "" || space.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}
	return r.write(func(st *state) error {
		if _, ok := st.spaces[space.ID]; ok {
			return fmt.Errorf("%w: space %s", persistence.ErrDuplicate, space.ID)
		}
		if space.CreatedAt.IsZero() {
			space.CreatedAt = r.storage.now()
		}
		if space.UpdatedAt.IsZero() {
			space.UpdatedAt = space.CreatedAt
		}
		st.spaces[space.ID] = space
		return nil
	})
}

func (r *repository) GetSpace(_ context.Context, id string) (persistence.Space, error) {
	var space persistence.Space
	err := r.read(func(st *state) error {
		found, ok := st.spaces[id]
		if !ok {
			return persistence.ErrNotFound
		}
		space = found
		return nil
	})
	return space, err
}

// --- EventRepository ---

func validateEvent(st *state, event persistence.Event) error {
	if strings.TrimSpace(event.ID) == "" || event.From >= event.To ||
		event.BufferBefore < 0 || event.BufferBefore > 240 || event.BufferAfter < 0 || event.BufferAfter > 240 ||
		(event.SpaceID == nil) == (event.FreeLocation == nil) {
		return persistence.ErrConstraintViolation
	}
	if event.SpaceID != nil {
		if _, ok := st.spaces[*event.SpaceID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

func (r *repository) CreateEvent(_ context.Context, event persistence.Event) error {
	return r.write(func(st *state) error {
		if err := validateEvent(st, event); err != nil {
			return err
		}
		if _, ok := st.events[event.ID]; ok {
			return fmt.Errorf("%w: event %s", persistence.ErrDuplicate, event.ID)
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = r.storage.now()
		}
		if event.UpdatedAt.IsZero() {
			event.UpdatedAt = event.CreatedAt
		}
		st.events[event.ID] = cloneEvent(event)
		return nil
	})
}

func (r *repository) UpdateEvent(_ context.Context, event persistence.Event) error {
	return r.write(func(st *state) error {
		existing, ok := st.events[event.ID]
		if !ok {
			return persistence.ErrNotFound
		}
		if err := validateEvent(st, event); err != nil {
			return err
		}
		event.CreatedAt = existing.CreatedAt
		if event.UpdatedAt.IsZero() {
			event.UpdatedAt = r.storage.now()
		}
		st.events[event.ID] = cloneEvent(event)
		return nil
	})
}

func (r *repository) GetEvent(_ context.Context, id string) (persistence.Event, error) {
	var event persistence.Event
	err := r.read(func(st *state) error {
		found, ok := st.events[id]
		if !ok {
			return persistence.ErrNotFound
		}
		event = cloneEvent(found)
		return nil
	})
	return event, err
}

func (r *repository) ListEvents(_ context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var events []persistence.Event
	err := r.read(func(st *state) error {
		for _, event := range st.events {
			if matchesEvent(event, filter) {
				events = append(events, cloneEvent(event))
			}
		}
		return nil
	})
	sort.Slice(events, func(i, j int) bool {
		if events[i].From == events[j].From {
			return events[i].ID < events[j].ID
		}
		return events[i].From < events[j].From
	})
	return events, err
}

func matchesEvent(event persistence.Event, filter persistence.EventFilter) bool {
	if filter.SpaceID != "" && (event.SpaceID == nil || *event.SpaceID != filter.SpaceID) {
		return false
	}
	if !filter.Date.IsZero() && scheduler.FormatDate(event.Date) != scheduler.FormatDate(filter.Date) {
		return false
	}
	if len(filter.Statuses) > 0 {
		matched := false
		for _, status := range filter.Statuses {
			if event.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.ExcludeID != "" && event.ID == filter.ExcludeID {
		return false
	}
	if filter.TechSupportOnly && !event.RequiresTechSupport {
		return false
	}
	return true
}

// --- TechCapacityConfigRepository ---

func (r *repository) SaveTechCapacityConfig(_ context.Context, config persistence.TechCapacityConfig) error {
	if strings.TrimSpace(config.ID) == "" || config.BlockMinutes <= 0 || config.DefaultSlotsPerBlock < 0 {
		return persistence.ErrConstraintViolation
	}
	return r.write(func(st *state) error {
		now := r.storage.now()
		if existing, ok := st.configs[config.ID]; ok {
			config.CreatedAt = existing.CreatedAt
		} else if config.CreatedAt.IsZero() {
			config.CreatedAt = now
		}
		config.UpdatedAt = now
		if config.Active {
			for id, other := range st.configs {
				if id != config.ID && other.Active {
					other.Active = false
					other.UpdatedAt = now
					st.configs[id] = other
				}
			}
		}
		st.configs[config.ID] = config
		return nil
	})
}

func (r *repository) ActiveTechCapacityConfig(_ context.Context) (persistence.TechCapacityConfig, error) {
	var config persistence.TechCapacityConfig
	err := r.read(func(st *state) error {
		for _, candidate := range st.configs {
			if candidate.Active {
				config = candidate
				return nil
			}
		}
		return persistence.ErrNotFound
	})
	return config, err
}

// --- ConflictRepository ---

func (r *repository) CreateConflict(_ context.Context, conflict persistence.PriorityConflict) error {
	if strings.TrimSpace(conflict.ID) == "" || strings.TrimSpace(conflict.Code) == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(func(st *state) error {
		if _, ok := st.events[conflict.HighEventID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
		if _, ok := st.events[conflict.DisplacedEventID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
		if _, ok := st.conflicts[conflict.Code]; ok {
			return fmt.Errorf("%w: conflict code %s", persistence.ErrDuplicate, conflict.Code)
		}
		for _, existing := range st.conflicts {
			if existing.ID == conflict.ID {
				return fmt.Errorf("%w: conflict id %s", persistence.ErrDuplicate, conflict.ID)
			}
			if conflict.Status == persistence.ConflictStatusOpen && existing.Status == persistence.ConflictStatusOpen &&
				existing.HighEventID == conflict.HighEventID && existing.DisplacedEventID == conflict.DisplacedEventID {
				return fmt.Errorf("%w: open conflict for %s/%s", persistence.ErrDuplicate, conflict.HighEventID, conflict.DisplacedEventID)
			}
		}
		if conflict.CreatedAt.IsZero() {
			conflict.CreatedAt = r.storage.now()
		}
		st.conflicts[conflict.Code] = cloneConflict(conflict)
		return nil
	})
}

func (r *repository) UpdateConflict(_ context.Context, conflict persistence.PriorityConflict) error {
	return r.write(func(st *state) error {
		existing, ok := st.conflicts[conflict.Code]
		if !ok {
			return persistence.ErrNotFound
		}
		existing.Status = conflict.Status
		existing.Decision = conflict.Decision
		existing.DecisionBy = conflict.DecisionBy
		existing.Reason = conflict.Reason
		existing.ClosedAt = conflict.ClosedAt
		st.conflicts[conflict.Code] = cloneConflict(existing)
		return nil
	})
}

func (r *repository) GetConflictByCode(_ context.Context, code string) (persistence.PriorityConflict, error) {
	var conflict persistence.PriorityConflict
	err := r.read(func(st *state) error {
		found, ok := st.conflicts[code]
		if !ok {
			return persistence.ErrNotFound
		}
		conflict = cloneConflict(found)
		return nil
	})
	return conflict, err
}

func (r *repository) FindOpenConflict(ctx context.Context, highEventID, displacedEventID string) (persistence.PriorityConflict, error) {
	conflicts, err := r.ListConflicts(ctx, persistence.ConflictFilter{
		HighEventID:      highEventID,
		DisplacedEventID: displacedEventID,
		Status:           persistence.ConflictStatusOpen,
	})
	if err != nil {
		return persistence.PriorityConflict{}, err
	}
	if len(conflicts) == 0 {
		return persistence.PriorityConflict{}, persistence.ErrNotFound
	}
	return conflicts[0], nil
}

func (r *repository) ListConflicts(_ context.Context, filter persistence.ConflictFilter) ([]persistence.PriorityConflict, error) {
	var conflicts []persistence.PriorityConflict
	err := r.read(func(st *state) error {
		for _, conflict := range st.conflicts {
			if filter.HighEventID != "" && conflict.HighEventID != filter.HighEventID {
				continue
			}
			if filter.DisplacedEventID != "" && conflict.DisplacedEventID != filter.DisplacedEventID {
				continue
			}
			if filter.Status != "" && conflict.Status != filter.Status {
				continue
			}
			conflicts = append(conflicts, cloneConflict(conflict))
		}
		return nil
	})
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Code < conflicts[j].Code })
	return conflicts, err
}

func (r *repository) CountConflictCodes(_ context.Context, prefix string) (int, error) {
	count := 0
	err := r.read(func(st *state) error {
		for code := range st.conflicts {
			if strings.HasPrefix(code, prefix) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// --- AuditRepository ---

func (r *repository) AppendAudit(_ context.Context, entry persistence.AuditEntry) error {
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.EventID) == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(func(st *state) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.storage.now()
		}
		st.audit = append(st.audit, cloneAudit(entry))
		return nil
	})
}

func (r *repository) ListAudit(_ context.Context, eventID string) ([]persistence.AuditEntry, error) {
	var entries []persistence.AuditEntry
	err := r.read(func(st *state) error {
		for _, entry := range st.audit {
			if entry.EventID == eventID {
				entries = append(entries, cloneAudit(entry))
			}
		}
		return nil
	})
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, err
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func cloneEvent(event persistence.Event) persistence.Event {
	event.SpaceID = copyStringPtr(event.SpaceID)
	event.FreeLocation = copyStringPtr(event.FreeLocation)
	return event
}

func cloneConflict(conflict persistence.PriorityConflict) persistence.PriorityConflict {
	conflict.SpaceID = copyStringPtr(conflict.SpaceID)
	if conflict.ClosedAt != nil {
		closed := *conflict.ClosedAt
		conflict.ClosedAt = &closed
	}
	return conflict
}

func cloneAudit(entry persistence.AuditEntry) persistence.AuditEntry {
	if entry.Detail != nil {
		detail := make(map[string]string, len(entry.Detail))
		for k, v := range entry.Detail {
			detail[k] = v
		}
		entry.Detail = detail
	}
	return entry
}

var _ persistence.Transactor = (*Storage)(nil)
