package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
	"github.com/example/venue-scheduler/internal/testfixtures"
)

// backends runs every contract test against the in-memory and SQLite storage.
var backends = []struct {
	name string
	open func(testing.TB) *testfixtures.Harness
}{
	{name: "memory", open: testfixtures.NewMemoryHarness},
	{name: "sqlite", open: testfixtures.NewSQLiteHarness},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, h *testfixtures.Harness)) {
	t.Helper()
	for _, backend := range backends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			t.Parallel()
			fn(t, backend.open(t))
		})
	}
}

func tod(value string) scheduler.TimeOfDay {
	return scheduler.MustParseTimeOfDay(value)
}

func eventIDs(events []persistence.Event) []string {
	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}

func TestSpaceRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		hall := h.AddSpace(testfixtures.WithSpaceID("hall"))

		got, err := h.Repos.Spaces.GetSpace(ctx, "hall")
		require.NoError(t, err)
		assert.Equal(t, hall.Name, got.Name)
		assert.Equal(t, hall.Capacity, got.Capacity)
		assert.True(t, got.Active)
		assert.True(t, got.CreatedAt.Equal(testfixtures.ReferenceTime()))

		err = h.Repos.Spaces.CreateSpace(ctx, hall)
		assert.ErrorIs(t, err, persistence.ErrDuplicate)

		_, err = h.Repos.Spaces.GetSpace(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestEventRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		h.AddSpace(testfixtures.WithSpaceID("hall"))
		seeded := h.AddEvent(
			testfixtures.WithEventID("gala"),
			testfixtures.AtSpace("hall"),
			testfixtures.Between("18:00", "24:00"),
			testfixtures.WithBuffers(30, 0),
			testfixtures.WithPriority(7),
			testfixtures.Internal(),
			testfixtures.WithTechSupport(scheduler.TechSupportSetupOnly),
		)

		got, err := h.Repos.Events.GetEvent(ctx, "gala")
		require.NoError(t, err)
		require.NotNil(t, got.SpaceID)
		assert.Equal(t, "hall", *got.SpaceID)
		assert.Nil(t, got.FreeLocation)
		assert.True(t, got.Date.Equal(seeded.Date))
		assert.Equal(t, tod("18:00"), got.From)
		assert.Equal(t, scheduler.EndOfDay, got.To)
		assert.Equal(t, 30, got.BufferBefore)
		assert.Equal(t, persistence.EventStatusReserved, got.Status)
		assert.Equal(t, 7, got.Priority)
		assert.True(t, got.Internal)
		assert.True(t, got.RequiresTechSupport)
		assert.Equal(t, scheduler.TechSupportSetupOnly, got.TechSupportMode)

		got.RequiresRebooking = true
		got.LastModifiedBy = "coordinator"
		require.NoError(t, h.Repos.Events.UpdateEvent(ctx, got))

		updated, err := h.Repos.Events.GetEvent(ctx, "gala")
		require.NoError(t, err)
		assert.True(t, updated.RequiresRebooking)
		assert.Equal(t, "coordinator", updated.LastModifiedBy)

		missing := updated
		missing.ID = "ghost"
		assert.ErrorIs(t, h.Repos.Events.UpdateEvent(ctx, missing), persistence.ErrNotFound)

		_, err = h.Repos.Events.GetEvent(ctx, "ghost")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestEventRepository_Constraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []testfixtures.EventOption
		mutate  func(*persistence.Event)
		wantErr error
	}{
		{
			name:    "space and free location together",
			opts:    []testfixtures.EventOption{testfixtures.AtSpace("hall")},
			mutate:  func(e *persistence.Event) { location := "Garden"; e.FreeLocation = &location },
			wantErr: persistence.ErrConstraintViolation,
		},
		{
			name:    "neither space nor free location",
			mutate:  func(e *persistence.Event) { e.FreeLocation = nil },
			wantErr: persistence.ErrConstraintViolation,
		},
		{
			name:    "end before start",
			opts:    []testfixtures.EventOption{testfixtures.Between("12:00", "10:00")},
			wantErr: persistence.ErrConstraintViolation,
		},
		{
			name:    "buffer above the limit",
			opts:    []testfixtures.EventOption{testfixtures.WithBuffers(0, 241)},
			wantErr: persistence.ErrConstraintViolation,
		},
		{
			name:    "unknown space",
			opts:    []testfixtures.EventOption{testfixtures.AtSpace("nowhere")},
			wantErr: persistence.ErrForeignKeyViolation,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
				h.AddSpace(testfixtures.WithSpaceID("hall"))
				event := testfixtures.NewEventFixture(tc.opts...).Persistence()
				if tc.mutate != nil {
					tc.mutate(&event)
				}
				err := h.Repos.Events.CreateEvent(context.Background(), event)
				assert.True(t, errors.Is(err, tc.wantErr), "expected %v, got %v", tc.wantErr, err)
			})
		})
	}
}

func TestEventRepository_ListEventsFiltersAndOrders(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		h.AddSpace(testfixtures.WithSpaceID("hall"))
		h.AddSpace(testfixtures.WithSpaceID("annex"))

		h.AddEvent(testfixtures.WithEventID("b"), testfixtures.AtSpace("hall"), testfixtures.Between("10:00", "11:00"))
		h.AddEvent(testfixtures.WithEventID("a"), testfixtures.AtSpace("hall"), testfixtures.Between("10:00", "12:00"))
		h.AddEvent(testfixtures.WithEventID("early"), testfixtures.AtSpace("hall"), testfixtures.Between("08:00", "09:00"),
			testfixtures.WithStatus(persistence.EventStatusInReview), testfixtures.WithTechSupport(scheduler.TechSupportAttended))
		h.AddEvent(testfixtures.WithEventID("rejected"), testfixtures.AtSpace("hall"),
			testfixtures.WithStatus(persistence.EventStatusRejected))
		h.AddEvent(testfixtures.WithEventID("tomorrow"), testfixtures.AtSpace("hall"),
			testfixtures.OnDate(testfixtures.ReferenceDate().AddDate(0, 0, 1)))
		h.AddEvent(testfixtures.WithEventID("elsewhere"), testfixtures.AtSpace("annex"))
		h.AddEvent(testfixtures.WithEventID("outdoors"), testfixtures.WithTechSupport(scheduler.TechSupportAttended))

		blocking, err := h.Repos.Events.ListEvents(ctx, persistence.EventFilter{
			SpaceID:  "hall",
			Date:     testfixtures.ReferenceDate(),
			Statuses: persistence.BlockingStatuses(),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "a", "b"}, eventIDs(blocking))

		excluding, err := h.Repos.Events.ListEvents(ctx, persistence.EventFilter{
			SpaceID:   "hall",
			Date:      testfixtures.ReferenceDate(),
			Statuses:  persistence.BlockingStatuses(),
			ExcludeID: "a",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "b"}, eventIDs(excluding))

		tech, err := h.Repos.Events.ListEvents(ctx, persistence.EventFilter{
			Date:            testfixtures.ReferenceDate(),
			TechSupportOnly: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "outdoors"}, eventIDs(tech))
	})
}

func TestTechCapacityConfigRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()

		_, err := h.Repos.TechCapacity.ActiveTechCapacityConfig(ctx)
		require.ErrorIs(t, err, persistence.ErrNotFound)

		require.NoError(t, h.Repos.TechCapacity.SaveTechCapacityConfig(ctx, persistence.TechCapacityConfig{
			ID: "winter", BlockMinutes: 30, DefaultSlotsPerBlock: 10, Active: true,
		}))
		require.NoError(t, h.Repos.TechCapacity.SaveTechCapacityConfig(ctx, persistence.TechCapacityConfig{
			ID: "festival", BlockMinutes: 15, DefaultSlotsPerBlock: 4, Active: true,
		}))

		active, err := h.Repos.TechCapacity.ActiveTechCapacityConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, "festival", active.ID)
		assert.Equal(t, 15, active.BlockMinutes)
		assert.Equal(t, 4, active.DefaultSlotsPerBlock)

		err = h.Repos.TechCapacity.SaveTechCapacityConfig(ctx, persistence.TechCapacityConfig{ID: "broken", BlockMinutes: 0})
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func newConflict(id, code, high, displaced string) persistence.PriorityConflict {
	hall := "hall"
	return persistence.PriorityConflict{
		ID:               id,
		Code:             code,
		HighEventID:      high,
		DisplacedEventID: displaced,
		SpaceID:          &hall,
		ConflictDate:     testfixtures.ReferenceDate(),
		From:             tod("10:00"),
		To:               tod("12:00"),
		Status:           persistence.ConflictStatusOpen,
		CreatedBy:        "coordinator",
	}
}

func TestConflictRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		h.AddSpace(testfixtures.WithSpaceID("hall"))
		h.AddEvent(testfixtures.WithEventID("gala"), testfixtures.AtSpace("hall"))
		h.AddEvent(testfixtures.WithEventID("talk"), testfixtures.AtSpace("hall"))
		h.AddEvent(testfixtures.WithEventID("lunch"), testfixtures.AtSpace("hall"))

		first := newConflict("c1", "PRIO-20250314-00001", "gala", "talk")
		require.NoError(t, h.Repos.Conflicts.CreateConflict(ctx, first))
		require.NoError(t, h.Repos.Conflicts.CreateConflict(ctx, newConflict("c2", "PRIO-20250314-00002", "gala", "lunch")))

		err := h.Repos.Conflicts.CreateConflict(ctx, newConflict("c3", "PRIO-20250314-00003", "gala", "talk"))
		assert.ErrorIs(t, err, persistence.ErrDuplicate, "one open conflict per pair")

		err = h.Repos.Conflicts.CreateConflict(ctx, newConflict("c4", "PRIO-20250314-00004", "gala", "ghost"))
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)

		got, err := h.Repos.Conflicts.GetConflictByCode(ctx, first.Code)
		require.NoError(t, err)
		assert.Equal(t, "c1", got.ID)
		assert.Equal(t, "talk", got.DisplacedEventID)
		require.NotNil(t, got.SpaceID)
		assert.Equal(t, "hall", *got.SpaceID)
		assert.Equal(t, tod("12:00"), got.To)
		assert.True(t, got.CreatedAt.Equal(testfixtures.ReferenceTime()))

		open, err := h.Repos.Conflicts.FindOpenConflict(ctx, "gala", "talk")
		require.NoError(t, err)
		assert.Equal(t, first.Code, open.Code)

		closedAt := testfixtures.ReferenceTime().Add(time.Hour)
		got.Status = persistence.ConflictStatusClosed
		got.Decision = persistence.ConflictDecisionKeep
		got.DecisionBy = "director"
		got.Reason = "gala wins"
		got.ClosedAt = &closedAt
		require.NoError(t, h.Repos.Conflicts.UpdateConflict(ctx, got))

		_, err = h.Repos.Conflicts.FindOpenConflict(ctx, "gala", "talk")
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		reopened := newConflict("c5", "PRIO-20250314-00005", "gala", "talk")
		require.NoError(t, h.Repos.Conflicts.CreateConflict(ctx, reopened), "closed conflicts free the pair")

		openList, err := h.Repos.Conflicts.ListConflicts(ctx, persistence.ConflictFilter{
			HighEventID: "gala",
			Status:      persistence.ConflictStatusOpen,
		})
		require.NoError(t, err)
		require.Len(t, openList, 2)
		assert.Equal(t, "PRIO-20250314-00002", openList[0].Code)
		assert.Equal(t, "PRIO-20250314-00005", openList[1].Code)

		closed, err := h.Repos.Conflicts.GetConflictByCode(ctx, first.Code)
		require.NoError(t, err)
		assert.Equal(t, persistence.ConflictDecisionKeep, closed.Decision)
		assert.Equal(t, "director", closed.DecisionBy)
		require.NotNil(t, closed.ClosedAt)
		assert.True(t, closed.ClosedAt.Equal(closedAt))

		count, err := h.Repos.Conflicts.CountConflictCodes(ctx, "PRIO-20250314-")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = h.Repos.Conflicts.CountConflictCodes(ctx, "PRIO-20250315-")
		require.NoError(t, err)
		assert.Zero(t, count)

		missing := got
		missing.Code = "PRIO-20250314-00099"
		assert.ErrorIs(t, h.Repos.Conflicts.UpdateConflict(ctx, missing), persistence.ErrNotFound)
	})
}

func TestAuditRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		base := testfixtures.ReferenceTime()

		require.NoError(t, h.Repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID: "a2", EventID: "talk", Action: persistence.AuditActionScheduleChange, Actor: "director",
			Detail: map[string]string{"from": "11:00"}, CreatedAt: base.Add(time.Minute),
		}))
		require.NoError(t, h.Repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID: "a1", EventID: "talk", Action: persistence.AuditActionSpaceConflict, Actor: "director",
			CreatedAt: base,
		}))
		require.NoError(t, h.Repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID: "a3", EventID: "gala", Action: persistence.AuditActionTechCapacityReject, CreatedAt: base,
		}))

		entries, err := h.Repos.Audit.ListAudit(ctx, "talk")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a1", entries[0].ID)
		assert.Equal(t, persistence.AuditActionSpaceConflict, entries[0].Action)
		assert.Equal(t, "a2", entries[1].ID)
		assert.Equal(t, "11:00", entries[1].Detail["from"])

		err = h.Repos.Audit.AppendAudit(ctx, persistence.AuditEntry{ID: "a4"})
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func TestWithinTx(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *testfixtures.Harness) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := h.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			if err := repos.Spaces.CreateSpace(ctx, testfixtures.NewSpaceFixture(testfixtures.WithSpaceID("rolled-back")).Persistence()); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = h.Repos.Spaces.GetSpace(ctx, "rolled-back")
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		err = h.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			return repos.Spaces.CreateSpace(ctx, testfixtures.NewSpaceFixture(testfixtures.WithSpaceID("committed")).Persistence())
		})
		require.NoError(t, err)
		_, err = h.Repos.Spaces.GetSpace(ctx, "committed")
		assert.NoError(t, err)
	})
}
