// Package audit appends schedule history records for the engine. The log is
// append-only and is never read back by the engine itself.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// Sink implements application.AuditSink over an audit repository.
type Sink struct {
	repo        persistence.AuditRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSink returns a sink writing through repo. Nil generators default to
// random UUIDs and the wall clock.
func NewSink(repo persistence.AuditRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Sink {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{repo: repo, idGenerator: idGenerator, now: now, logger: logger}
}

// RecordScheduleChange stores the move of an event to a new slot.
func (s *Sink) RecordScheduleChange(ctx context.Context, change application.ScheduleChange) error {
	detail := map[string]string{
		"date":          scheduler.FormatDate(change.Event.Date),
		"from":          change.Event.From.String(),
		"to":            change.Event.To.String(),
		"previous_date": scheduler.FormatDate(change.Previous.Date),
		"previous_from": change.Previous.From.String(),
		"previous_to":   change.Previous.To.String(),
	}
	if change.Event.SpaceID != nil {
		detail["space_id"] = *change.Event.SpaceID
	}
	if change.Previous.SpaceID != nil {
		detail["previous_space_id"] = *change.Previous.SpaceID
	}
	return s.append(ctx, change.Event.ID, persistence.AuditActionScheduleChange, change.Actor, detail)
}

// RecordSpaceConflict stores a move refused because the target space was taken.
func (s *Sink) RecordSpaceConflict(ctx context.Context, rejection application.SpaceConflictRejection) error {
	ids := make([]string, 0, len(rejection.Conflicts))
	for _, item := range rejection.Conflicts {
		ids = append(ids, item.EventID)
	}
	detail := windowDetail(rejection.Window)
	detail["space_id"] = rejection.SpaceID
	detail["conflicting_event_ids"] = strings.Join(ids, ",")
	return s.append(ctx, rejection.EventID, persistence.AuditActionSpaceConflict, rejection.Actor, detail)
}

// RecordTechCapacityReject stores a move refused for lack of technical staff.
func (s *Sink) RecordTechCapacityReject(ctx context.Context, rejection application.TechCapacityRejection) error {
	blocks := make([]string, len(rejection.Blocks))
	for i, block := range rejection.Blocks {
		blocks[i] = block.String()
	}
	detail := windowDetail(rejection.Window)
	detail["saturated_blocks"] = strings.Join(blocks, ",")
	detail["saturated_count"] = strconv.Itoa(len(blocks))
	return s.append(ctx, rejection.EventID, persistence.AuditActionTechCapacityReject, rejection.Actor, detail)
}

func (s *Sink) append(ctx context.Context, eventID string, action persistence.AuditAction, actor string, detail map[string]string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("audit sink not configured")
	}
	entry := persistence.AuditEntry{
		ID:        s.idGenerator(),
		EventID:   eventID,
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append %s audit for %s: %w", action, eventID, err)
	}
	s.logger.DebugContext(ctx, "audit entry appended", "event_id", eventID, "action", string(action))
	return nil
}

func windowDetail(window scheduler.TimeWindow) map[string]string {
	return map[string]string{
		"date": scheduler.FormatDate(window.Date()),
		"from": window.Start().String(),
		"to":   window.End().String(),
	}
}
