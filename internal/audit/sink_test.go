package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/persistence/memory"
	"github.com/example/venue-scheduler/internal/scheduler"
)

var (
	day = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	now = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
)

func newSink(t *testing.T) (*Sink, persistence.AuditRepository) {
	t.Helper()
	repo := memory.New(func() time.Time { return now }).Repositories().Audit
	ids := 0
	sink := NewSink(repo, func() string {
		ids++
		return fmt.Sprintf("audit-%d", ids)
	}, func() time.Time { return now }, nil)
	return sink, repo
}

func TestSink_RecordScheduleChange(t *testing.T) {
	sink, repo := newSink(t)
	annex, hall := "annex", "hall"

	err := sink.RecordScheduleChange(context.Background(), application.ScheduleChange{
		Event: persistence.Event{
			ID: "talk", SpaceID: &annex, Date: day.AddDate(0, 0, 1),
			From: scheduler.MustParseTimeOfDay("14:00"), To: scheduler.MustParseTimeOfDay("15:00"),
		},
		Previous: persistence.Event{
			ID: "talk", SpaceID: &hall, Date: day,
			From: scheduler.MustParseTimeOfDay("09:30"), To: scheduler.MustParseTimeOfDay("10:30"),
		},
		Actor: "director",
	})
	require.NoError(t, err)

	entries, err := repo.ListAudit(context.Background(), "talk")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "audit-1", entry.ID)
	assert.Equal(t, persistence.AuditActionScheduleChange, entry.Action)
	assert.Equal(t, "director", entry.Actor)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Equal(t, map[string]string{
		"date":              "2025-03-15",
		"from":              "14:00",
		"to":                "15:00",
		"space_id":          "annex",
		"previous_date":     "2025-03-14",
		"previous_from":     "09:30",
		"previous_to":       "10:30",
		"previous_space_id": "hall",
	}, entry.Detail)
}

func TestSink_RecordRejections(t *testing.T) {
	sink, repo := newSink(t)
	window := scheduler.MustTimeWindow(day, scheduler.MustParseTimeOfDay("16:30"), scheduler.MustParseTimeOfDay("18:00"))

	require.NoError(t, sink.RecordSpaceConflict(context.Background(), application.SpaceConflictRejection{
		EventID:   "workshop",
		Actor:     "director",
		SpaceID:   "annex",
		Window:    window,
		Conflicts: []application.ConflictItem{{EventID: "a"}, {EventID: "b"}},
	}))
	require.NoError(t, sink.RecordTechCapacityReject(context.Background(), application.TechCapacityRejection{
		EventID: "workshop",
		Actor:   "director",
		Window:  window,
		Blocks:  []scheduler.TimeOfDay{scheduler.MustParseTimeOfDay("16:30")},
	}))

	entries, err := repo.ListAudit(context.Background(), "workshop")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, persistence.AuditActionSpaceConflict, entries[0].Action)
	assert.Equal(t, "a,b", entries[0].Detail["conflicting_event_ids"])
	assert.Equal(t, "16:30", entries[0].Detail["from"])
	assert.Equal(t, persistence.AuditActionTechCapacityReject, entries[1].Action)
	assert.Equal(t, "16:30", entries[1].Detail["saturated_blocks"])
	assert.Equal(t, "1", entries[1].Detail["saturated_count"])
}

type failingRepo struct{}

func (failingRepo) AppendAudit(context.Context, persistence.AuditEntry) error {
	return errors.New("disk full")
}

func (failingRepo) ListAudit(context.Context, string) ([]persistence.AuditEntry, error) {
	return nil, nil
}

func TestSink_PropagatesRepositoryErrors(t *testing.T) {
	sink := NewSink(failingRepo{}, nil, nil, nil)
	err := sink.RecordSpaceConflict(context.Background(), application.SpaceConflictRejection{EventID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
