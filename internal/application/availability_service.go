package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// AvailabilityService decides whether a space is free for a proposed slot.
type AvailabilityService struct {
	events EventFinder
	logger *slog.Logger
}

// NewAvailabilityService constructs an availability service over the event store.
func NewAvailabilityService(events EventFinder) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(events, nil)
}

// NewAvailabilityServiceWithLogger constructs an availability service with a specified logger.
func NewAvailabilityServiceWithLogger(events EventFinder, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{events: events, logger: defaultLogger(logger)}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// CheckAvailability reports every blocking booking at the query's space whose
// buffered window overlaps the buffered query window. Free-text locations are
// never checked and are always available.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, query AvailabilityQuery) (result AvailabilityResult, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability",
		"space_id", query.SpaceID,
		"date", scheduler.FormatDate(query.Date),
		"from", query.From.String(),
		"to", query.To.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "availability checked", "available", result.Available, "conflicts", len(result.Conflicts))
	}()

	vErr := validateAvailabilityQuery(query)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if strings.TrimSpace(query.SpaceID) == "" {
		result = AvailabilityResult{Available: true}
		return
	}

	candidate, err := scheduler.NewTimeWindow(query.Date, query.From, query.To)
	if err != nil {
		return
	}
	candidate = candidate.WithBuffers(query.BufferBefore, query.BufferAfter)

	if s.events == nil {
		err = fmt.Errorf("event finder not configured")
		return
	}

	var existing []persistence.Event
	existing, err = s.events.ListEvents(ctx, persistence.EventFilter{
		SpaceID:   strings.TrimSpace(query.SpaceID),
		Date:      query.Date,
		Statuses:  persistence.BlockingStatuses(),
		ExcludeID: query.IgnoreEventID,
	})
	if err != nil {
		err = fmt.Errorf("list events: %w", err)
		return
	}

	result, err = detectConflicts(existing, candidate, query.IgnoreEventID)
	return
}

// GetSpaceOccupancy returns the raw schedule of blocking events at a space on
// date, ordered by start time.
func (s *AvailabilityService) GetSpaceOccupancy(ctx context.Context, spaceID string, date time.Time) (blocks []OccupancyBlock, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetSpaceOccupancy", "space_id", spaceID, "date", scheduler.FormatDate(date))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load occupancy", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(spaceID) == "" {
		vErr.add("space_id", "is required")
	}
	if date.IsZero() {
		vErr.add("date", "is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event finder not configured")
		return
	}

	var events []persistence.Event
	events, err = s.events.ListEvents(ctx, persistence.EventFilter{
		SpaceID:  strings.TrimSpace(spaceID),
		Date:     date,
		Statuses: persistence.BlockingStatuses(),
	})
	if err != nil {
		err = fmt.Errorf("list events: %w", err)
		return
	}

	blocks = make([]OccupancyBlock, 0, len(events))
	for _, event := range events {
		blocks = append(blocks, OccupancyBlock{
			EventID: event.ID,
			Title:   event.Title,
			From:    event.From,
			To:      event.To,
			Status:  event.Status,
		})
	}
	return
}

func validateAvailabilityQuery(query AvailabilityQuery) *ValidationError {
	vErr := validateSlot(query.Date, query.From, query.To)
	vErr.merge(ValidateBuffers(query.BufferBefore, query.BufferAfter))

	hasSpace := strings.TrimSpace(query.SpaceID) != ""
	hasLocation := strings.TrimSpace(query.FreeLocation) != ""
	switch {
	case hasSpace && hasLocation:
		vErr.add("location", "space_id and free_location are mutually exclusive")
	case !hasSpace && !hasLocation:
		vErr.add("location", "one of space_id or free_location is required")
	}
	return vErr
}

func detectConflicts(existing []persistence.Event, candidate scheduler.TimeWindow, ignoreID string) (AvailabilityResult, error) {
	byID := make(map[string]persistence.Event, len(existing))
	bookings := make([]scheduler.Booking, 0, len(existing))
	for _, event := range existing {
		booking, err := event.Booking()
		if err != nil {
			return AvailabilityResult{}, fmt.Errorf("event %s: %w", event.ID, err)
		}
		byID[event.ID] = event
		bookings = append(bookings, booking)
	}

	overlaps := scheduler.DetectOverlaps(bookings, candidate, ignoreID)
	result := AvailabilityResult{Available: len(overlaps) == 0}
	for _, overlap := range overlaps {
		result.Conflicts = append(result.Conflicts, conflictItem(byID[overlap.BookingID], overlap.Effective))
	}
	return result, nil
}

func conflictItem(event persistence.Event, effective scheduler.TimeWindow) ConflictItem {
	item := ConflictItem{
		EventID:      event.ID,
		Title:        event.Title,
		Status:       event.Status,
		Date:         event.Date,
		From:         effective.Start(),
		To:           effective.End(),
		Internal:     event.Internal,
		Priority:     event.Priority,
		BufferBefore: event.BufferBefore,
		BufferAfter:  event.BufferAfter,
	}
	if event.SpaceID != nil {
		item.SpaceID = *event.SpaceID
	}
	return item
}
