package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// seedDisplacement creates a high priority event in "hall" overlapping two
// lower priority bookings and one equal priority booking.
func seedDisplacement(t *testing.T, h *harness) persistence.Event {
	t.Helper()
	h.addSpace(t, "hall", true)
	h.addSpace(t, "annex", true)
	h.addSpace(t, "closed", false)
	high := h.addEvent(t, newEvent("gala", "10:00", "12:00", atSpace("hall"), withPriority(10), withStatus(persistence.EventStatusApproved)))
	h.addEvent(t, newEvent("talk", "09:30", "10:30", atSpace("hall"), withPriority(1)))
	h.addEvent(t, newEvent("workshop", "11:00", "13:00", atSpace("hall"), withPriority(5), withTech(scheduler.TechSupportAttended)))
	h.addEvent(t, newEvent("board", "11:30", "12:30", atSpace("hall"), withPriority(10)))
	return high
}

func TestPriorityConflictService_RegisterConflictsCodes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	high := seedDisplacement(t, h)
	other := h.addEvent(t, newEvent("summit", "15:00", "16:00", atSpace("annex"), withPriority(9)))
	svc := h.conflictService(nil)

	conflicts, err := svc.RegisterConflicts(ctx, high, []persistence.Event{
		h.event(t, "talk"), h.event(t, "workshop"), h.event(t, "board"),
	}, "coordinator")
	require.NoError(t, err)
	require.Len(t, conflicts, 3)
	assert.Equal(t, "PRIO-20250314-00001", conflicts[0].Code)
	assert.Equal(t, "PRIO-20250314-00002", conflicts[1].Code)
	assert.Equal(t, "PRIO-20250314-00003", conflicts[2].Code)

	first := conflicts[0]
	assert.Equal(t, persistence.ConflictStatusOpen, first.Status)
	assert.Equal(t, "gala", first.HighEventID)
	assert.Equal(t, "talk", first.DisplacedEventID)
	require.NotNil(t, first.SpaceID)
	assert.Equal(t, "hall", *first.SpaceID)
	assert.Equal(t, "10:00", first.From.String(), "the high event's slot is recorded")
	assert.Equal(t, "12:00", first.To.String())
	assert.Equal(t, "coordinator", first.CreatedBy)
	assert.True(t, h.event(t, "talk").RequiresRebooking)

	next, err := svc.RegisterConflicts(ctx, other, []persistence.Event{h.event(t, "talk")}, "coordinator")
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "PRIO-20250314-00004", next[0].Code, "sequence is seeded from persisted codes")

	assert.Len(t, h.publisher.events, 4)
}

func TestPriorityConflictService_RegisterConflictsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	high := seedDisplacement(t, h)
	svc := h.conflictService(nil)

	first, err := svc.RegisterConflicts(ctx, high, []persistence.Event{h.event(t, "talk")}, "coordinator")
	require.NoError(t, err)
	require.Len(t, first, 1)

	talk := h.event(t, "talk")
	talk.RequiresRebooking = false
	require.NoError(t, h.repos.Events.UpdateEvent(ctx, talk))

	second, err := svc.RegisterConflicts(ctx, high, []persistence.Event{talk, talk}, "coordinator")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Code, second[0].Code)
	assert.True(t, h.event(t, "talk").RequiresRebooking, "re-registration flags the event again")

	all, err := h.repos.Conflicts.ListConflicts(ctx, persistence.ConflictFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, h.publisher.events, 1, "only new conflicts are published")
}

func TestPriorityConflictService_RegisterConflictsRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	high := seedDisplacement(t, h)
	svc := h.conflictService(nil)

	_, err := svc.RegisterConflicts(ctx, high, []persistence.Event{h.event(t, "talk"), {ID: "ghost"}}, "coordinator")
	require.ErrorIs(t, err, ErrNotFound)

	assert.False(t, h.event(t, "talk").RequiresRebooking)
	all, err := h.repos.Conflicts.ListConflicts(ctx, persistence.ConflictFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, h.publisher.events)
}

func TestPriorityConflictService_Displace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 2)
	assert.Equal(t, "talk", result.Conflicts[0].DisplacedEventID)
	assert.Equal(t, "workshop", result.Conflicts[1].DisplacedEventID)
	require.Len(t, result.Blocking, 1)
	assert.Equal(t, "board", result.Blocking[0].EventID)
	assert.False(t, h.event(t, "board").RequiresRebooking)

	open, err := svc.GetOpenConflicts(ctx, "gala")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	_, err = svc.Displace(ctx, "missing", "coordinator")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPriorityConflictService_DisplaceRequiresConfirmedHighEvent(t *testing.T) {
	ctx := context.Background()

	for _, status := range []persistence.EventStatus{persistence.EventStatusRejected, persistence.EventStatusRequested} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			h.addSpace(t, "hall", true)
			high := h.addEvent(t, newEvent("rejected-gala", "10:00", "12:00", atSpace("hall"), withPriority(10), withStatus(status)))
			h.addEvent(t, newEvent("talk", "10:30", "11:30", atSpace("hall"), withPriority(1), withStatus(persistence.EventStatusApproved)))
			svc := h.conflictService(nil)

			_, err := svc.Displace(ctx, "rejected-gala", "coordinator")
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "must be confirmed", vErr.FieldErrors["high_event_id"])

			_, err = svc.RegisterConflicts(ctx, high, []persistence.Event{h.event(t, "talk")}, "coordinator")
			require.ErrorAs(t, err, &vErr)

			assert.False(t, h.event(t, "talk").RequiresRebooking)
			all, err := h.repos.Conflicts.ListConflicts(ctx, persistence.ConflictFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Empty(t, h.publisher.events)
		})
	}
}

func TestPriorityConflictService_ApplyDecisionKeep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)
	code := result.Conflicts[0].Code

	closed, err := svc.ApplyDecision(ctx, DecisionRequest{
		Code:      code,
		Decision:  "",
		DecidedBy: "director",
		Reason:    "  both can share the hall  ",
	})
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusClosed, closed.Status)
	assert.Equal(t, persistence.ConflictDecisionKeep, closed.Decision)
	assert.Equal(t, "director", closed.DecisionBy)
	assert.Equal(t, "both can share the hall", closed.Reason)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, testNow, *closed.ClosedAt)

	talk := h.event(t, "talk")
	assert.False(t, talk.RequiresRebooking)
	assert.Equal(t, "director", talk.LastModifiedBy)
	assert.Equal(t, "09:30", talk.From.String(), "keep never moves the event")
	assert.Empty(t, h.audit.changes)

	stored, err := svc.GetConflict(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusClosed, stored.Status)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{Code: code, DecidedBy: "director"})
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestPriorityConflictService_ApplyDecisionRebook(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	locker := &lockerStub{}
	svc := h.conflictService(locker)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)

	closed, err := svc.ApplyDecision(ctx, DecisionRequest{
		Code:     result.Conflicts[0].Code,
		Decision: persistence.ConflictDecisionRebookOther,
		Target: &RebookTarget{
			Date:    testDate.AddDate(0, 0, 1),
			From:    tod("14:00"),
			To:      tod("15:00"),
			SpaceID: "annex",
		},
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictDecisionRebookOther, closed.Decision)

	talk := h.event(t, "talk")
	require.NotNil(t, talk.SpaceID)
	assert.Equal(t, "annex", *talk.SpaceID)
	assert.Nil(t, talk.FreeLocation)
	assert.Equal(t, "2025-03-15", scheduler.FormatDate(talk.Date))
	assert.Equal(t, "14:00", talk.From.String())
	assert.Equal(t, "15:00", talk.To.String())
	assert.False(t, talk.RequiresRebooking)

	require.Len(t, h.audit.changes, 1)
	change := h.audit.changes[0]
	assert.Equal(t, "talk", change.Event.ID)
	assert.Equal(t, "09:30", change.Previous.From.String())
	assert.Equal(t, "director", change.Actor)

	assert.Equal(t, []string{"rebook:annex:2025-03-15"}, locker.keys)
	assert.Equal(t, 1, locker.released)
}

func TestPriorityConflictService_RebookIgnoresDisplacedEventItself(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)

	// 09:00-10:00 overlaps the current talk slot and touches the gala.
	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      result.Conflicts[0].Code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("09:00"), To: tod("10:00"), SpaceID: "hall"},
		DecidedBy: "director",
	})
	require.NoError(t, err)

	talk := h.event(t, "talk")
	assert.Equal(t, "hall", *talk.SpaceID)
	assert.Equal(t, "09:00", talk.From.String())
}

func TestPriorityConflictService_RebookUnavailableLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	h.addEvent(t, newEvent("annex-busy", "14:00", "15:00", atSpace("annex"), withBuffers(0, 30)))
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)
	code := result.Conflicts[0].Code
	before := h.event(t, "talk")

	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("15:15"), To: tod("16:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	var conflictErr *AvailabilityConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Result.Conflicts, 1)
	assert.Equal(t, "annex-busy", conflictErr.Result.Conflicts[0].EventID)

	after := h.event(t, "talk")
	assert.Equal(t, before, after)
	stored, err := svc.GetConflict(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusOpen, stored.Status)
	assert.Nil(t, stored.ClosedAt)

	require.Len(t, h.audit.conflicts, 1)
	assert.Equal(t, "talk", h.audit.conflicts[0].EventID)
	assert.Empty(t, h.audit.changes)
}

func TestPriorityConflictService_RebookWithoutTechCapacity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	h.setCapacity(t, 30, 1)
	h.addEvent(t, newEvent("stage-crew", "16:00", "17:00", withTech(scheduler.TechSupportAttended)))
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)
	code := result.Conflicts[1].Code
	require.Equal(t, "workshop", result.Conflicts[1].DisplacedEventID)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("16:30"), To: tod("18:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	var exceeded *TechCapacityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, []scheduler.TimeOfDay{tod("16:30")}, exceeded.Blocks)
	require.Len(t, h.audit.rejects, 1)

	workshop := h.event(t, "workshop")
	assert.Equal(t, "hall", *workshop.SpaceID)
	assert.True(t, workshop.RequiresRebooking)

	closed, err := svc.ApplyDecision(ctx, DecisionRequest{
		Code:      code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("17:00"), To: tod("18:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusClosed, closed.Status)
}

func TestPriorityConflictService_AuditFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	h.audit.err = errAuditDown
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      result.Conflicts[0].Code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("18:00"), To: tod("19:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, "annex", *h.event(t, "talk").SpaceID)
	assert.Len(t, h.audit.changes, 1)
}

func TestPriorityConflictService_ApplyDecisionValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	svc := h.conflictService(nil)

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)
	code := result.Conflicts[0].Code

	tests := []struct {
		name  string
		req   DecisionRequest
		field string
	}{
		{
			name:  "missing target",
			req:   DecisionRequest{Code: code, Decision: persistence.ConflictDecisionRebookOther, DecidedBy: "director"},
			field: "target",
		},
		{
			name: "inverted target range",
			req: DecisionRequest{Code: code, Decision: persistence.ConflictDecisionRebookOther, DecidedBy: "director",
				Target: &RebookTarget{Date: testDate, From: tod("15:00"), To: tod("14:00"), SpaceID: "annex"}},
			field: "target.to",
		},
		{
			name: "inactive space",
			req: DecisionRequest{Code: code, Decision: persistence.ConflictDecisionRebookOther, DecidedBy: "director",
				Target: &RebookTarget{Date: testDate, From: tod("14:00"), To: tod("15:00"), SpaceID: "closed"}},
			field: "target.space_id",
		},
		{
			name: "unknown space",
			req: DecisionRequest{Code: code, Decision: persistence.ConflictDecisionRebookOther, DecidedBy: "director",
				Target: &RebookTarget{Date: testDate, From: tod("14:00"), To: tod("15:00"), SpaceID: "nowhere"}},
			field: "target.space_id",
		},
		{
			name:  "missing actor",
			req:   DecisionRequest{Code: code},
			field: "decided_by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyDecision(ctx, tt.req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldErrors, tt.field)
		})
	}

	stored, err := svc.GetConflict(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusOpen, stored.Status)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{Code: "PRIO-20990101-00001", DecidedBy: "director"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPriorityConflictService_LockContention(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	svc := h.conflictService(&lockerStub{err: fmt.Errorf("%w: rebook:annex:2025-03-14", ErrLockNotAcquired)})

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      result.Conflicts[0].Code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("14:00"), To: tod("15:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	require.ErrorIs(t, err, ErrBusy)

	_, err = svc.ApplyDecision(ctx, DecisionRequest{Code: result.Conflicts[0].Code, DecidedBy: "director"})
	require.NoError(t, err, "keep decisions never take the lock")
}

func TestPriorityConflictService_LockFailureIsNotContention(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedDisplacement(t, h)
	outage := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	svc := h.conflictService(&lockerStub{err: outage})

	result, err := svc.Displace(ctx, "gala", "coordinator")
	require.NoError(t, err)
	code := result.Conflicts[0].Code

	_, err = svc.ApplyDecision(ctx, DecisionRequest{
		Code:      code,
		Decision:  persistence.ConflictDecisionRebookOther,
		Target:    &RebookTarget{Date: testDate, From: tod("14:00"), To: tod("15:00"), SpaceID: "annex"},
		DecidedBy: "director",
	})
	require.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Equal(t, "unexpected", ErrorKind(err))

	talk := h.event(t, "talk")
	assert.Equal(t, "hall", *talk.SpaceID)
	assert.True(t, talk.RequiresRebooking)
	stored, err := svc.GetConflict(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, persistence.ConflictStatusOpen, stored.Status)
}

func TestConflictCodeFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PRIO-20250314-", ConflictCodeDatePrefix(testDate))
	assert.Equal(t, "PRIO-20250314-00042", FormatConflictCode(testDate, 42))
	assert.Equal(t, "PRIO-20250314-123456", FormatConflictCode(testDate, 123456))
}
