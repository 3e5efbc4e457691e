package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/persistence/memory"
	"github.com/example/venue-scheduler/internal/scheduler"
)

var (
	testDate = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
)

func tod(value string) scheduler.TimeOfDay {
	return scheduler.MustParseTimeOfDay(value)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	store     *memory.Storage
	repos     persistence.Repositories
	audit     *auditRecorder
	publisher *publisherRecorder
	nextID    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New(func() time.Time { return testNow })
	return &harness{
		store:     store,
		repos:     store.Repositories(),
		audit:     &auditRecorder{},
		publisher: &publisherRecorder{},
	}
}

func (h *harness) id() string {
	h.nextID++
	return fmt.Sprintf("conflict-%03d", h.nextID)
}

func (h *harness) conflictService(locker Locker) *PriorityConflictService {
	return NewPriorityConflictService(PriorityConflictDeps{
		Transactor:   h.store,
		Repositories: h.repos,
		Audit:        h.audit,
		Publisher:    h.publisher,
		Locker:       locker,
		IDGenerator:  h.id,
		Now:          func() time.Time { return testNow },
		Logger:       discardLogger(),
	})
}

func (h *harness) availability() *AvailabilityService {
	return NewAvailabilityServiceWithLogger(h.repos.Events, discardLogger())
}

func (h *harness) capacity() *TechCapacityService {
	return NewTechCapacityServiceWithLogger(h.repos.Events, h.repos.TechCapacity, discardLogger())
}

func (h *harness) addSpace(t *testing.T, id string, active bool) {
	t.Helper()
	require.NoError(t, h.repos.Spaces.CreateSpace(context.Background(), persistence.Space{
		ID:       id,
		Name:     "Space " + id,
		Capacity: 100,
		Active:   active,
	}))
}

func (h *harness) setCapacity(t *testing.T, blockMinutes, slots int) {
	t.Helper()
	require.NoError(t, h.repos.TechCapacity.SaveTechCapacityConfig(context.Background(), persistence.TechCapacityConfig{
		ID:                   "cfg",
		BlockMinutes:         blockMinutes,
		DefaultSlotsPerBlock: slots,
		Active:               true,
	}))
}

func (h *harness) addEvent(t *testing.T, event persistence.Event) persistence.Event {
	t.Helper()
	require.NoError(t, h.repos.Events.CreateEvent(context.Background(), event))
	return event
}

func (h *harness) event(t *testing.T, id string) persistence.Event {
	t.Helper()
	event, err := h.repos.Events.GetEvent(context.Background(), id)
	require.NoError(t, err)
	return event
}

type eventOption func(*persistence.Event)

func atSpace(spaceID string) eventOption {
	return func(e *persistence.Event) {
		e.SpaceID = &spaceID
		e.FreeLocation = nil
	}
}

func atLocation(location string) eventOption {
	return func(e *persistence.Event) {
		e.FreeLocation = &location
		e.SpaceID = nil
	}
}

func withBuffers(before, after int) eventOption {
	return func(e *persistence.Event) {
		e.BufferBefore = before
		e.BufferAfter = after
	}
}

func withStatus(status persistence.EventStatus) eventOption {
	return func(e *persistence.Event) { e.Status = status }
}

func withPriority(priority int) eventOption {
	return func(e *persistence.Event) { e.Priority = priority }
}

func withTech(mode scheduler.TechSupportMode) eventOption {
	return func(e *persistence.Event) {
		e.RequiresTechSupport = true
		e.TechSupportMode = mode
	}
}

func onDate(date time.Time) eventOption {
	return func(e *persistence.Event) { e.Date = date }
}

func newEvent(id, from, to string, opts ...eventOption) persistence.Event {
	location := "Courtyard"
	event := persistence.Event{
		ID:             id,
		Title:          "Event " + id,
		FreeLocation:   &location,
		Date:           testDate,
		From:           tod(from),
		To:             tod(to),
		Status:         persistence.EventStatusReserved,
		LastModifiedBy: "seed",
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

type auditRecorder struct {
	mu        sync.Mutex
	err       error
	changes   []ScheduleChange
	conflicts []SpaceConflictRejection
	rejects   []TechCapacityRejection
}

func (a *auditRecorder) RecordScheduleChange(_ context.Context, change ScheduleChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, change)
	return a.err
}

func (a *auditRecorder) RecordSpaceConflict(_ context.Context, rejection SpaceConflictRejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conflicts = append(a.conflicts, rejection)
	return a.err
}

func (a *auditRecorder) RecordTechCapacityReject(_ context.Context, rejection TechCapacityRejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects = append(a.rejects, rejection)
	return a.err
}

type publisherRecorder struct {
	mu     sync.Mutex
	events []ConflictCreated
}

func (p *publisherRecorder) PublishConflictCreated(_ context.Context, event ConflictCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type lockerStub struct {
	err      error
	keys     []string
	released int
}

func (l *lockerStub) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

var errAuditDown = errors.New("audit store unavailable")
