package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/persistence/memory"
)

// Store is the storage surface shared by the memory and SQLite backends.
type Store interface {
	persistence.Transactor
	Repositories() persistence.Repositories
}

// Harness seeds a storage backend with fixtures for service, transport and
// persistence tests.
type Harness struct {
	Store Store
	Repos persistence.Repositories
	Clock *Clock

	tb testing.TB
}

// NewMemoryHarness returns a harness over a fresh in-memory storage whose
// timestamps come from a clock set to ReferenceTime.
func NewMemoryHarness(tb testing.TB) *Harness {
	tb.Helper()
	clock := NewClock(time.Time{})
	store := memory.New(clock.NowFunc())
	return &Harness{Store: store, Repos: store.Repositories(), Clock: clock, tb: tb}
}

// AddSpace stores a space built from opts and returns it.
func (h *Harness) AddSpace(opts ...SpaceOption) persistence.Space {
	h.tb.Helper()
	space := NewSpaceFixture(opts...).Persistence()
	if err := h.Repos.Spaces.CreateSpace(context.Background(), space); err != nil {
		h.tb.Fatalf("failed to seed space %s: %v", space.ID, err)
	}
	return space
}

// AddEvent stores an event built from opts and returns it.
func (h *Harness) AddEvent(opts ...EventOption) persistence.Event {
	h.tb.Helper()
	event := NewEventFixture(opts...).Persistence()
	if err := h.Repos.Events.CreateEvent(context.Background(), event); err != nil {
		h.tb.Fatalf("failed to seed event %s: %v", event.ID, err)
	}
	return event
}

// SetTechCapacity activates a capacity configuration.
func (h *Harness) SetTechCapacity(blockMinutes, slotsPerBlock int) persistence.TechCapacityConfig {
	h.tb.Helper()
	config := persistence.TechCapacityConfig{
		ID:                   "capacity-default",
		BlockMinutes:         blockMinutes,
		DefaultSlotsPerBlock: slotsPerBlock,
		Active:               true,
		CreatedAt:            referenceTime,
		UpdatedAt:            referenceTime,
	}
	if err := h.Repos.TechCapacity.SaveTechCapacityConfig(context.Background(), config); err != nil {
		h.tb.Fatalf("failed to seed tech capacity config: %v", err)
	}
	return config
}

// Event reloads an event from storage.
func (h *Harness) Event(id string) persistence.Event {
	h.tb.Helper()
	event, err := h.Repos.Events.GetEvent(context.Background(), id)
	if err != nil {
		h.tb.Fatalf("failed to load event %s: %v", id, err)
	}
	return event
}
