package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

const (
	// DefaultBlockMinutes is the block size used when no configuration is active.
	DefaultBlockMinutes = 30
	// DefaultSlotsPerBlock is the per-block capacity used when no configuration is active.
	DefaultSlotsPerBlock = 10
)

// DefaultTechCapacityConfig is the configuration in force when none is marked active.
func DefaultTechCapacityConfig() persistence.TechCapacityConfig {
	return persistence.TechCapacityConfig{
		ID:                   "default",
		BlockMinutes:         DefaultBlockMinutes,
		DefaultSlotsPerBlock: DefaultSlotsPerBlock,
		Active:               true,
	}
}

// TechCapacityService checks requests against the shared technical support pool.
type TechCapacityService struct {
	events  EventFinder
	configs CapacityConfigSource
	logger  *slog.Logger
}

// NewTechCapacityService constructs a capacity service.
func NewTechCapacityService(events EventFinder, configs CapacityConfigSource) *TechCapacityService {
	return NewTechCapacityServiceWithLogger(events, configs, nil)
}

// NewTechCapacityServiceWithLogger constructs a capacity service with a specified logger.
func NewTechCapacityServiceWithLogger(events EventFinder, configs CapacityConfigSource, logger *slog.Logger) *TechCapacityService {
	return &TechCapacityService{events: events, configs: configs, logger: defaultLogger(logger)}
}

func (s *TechCapacityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TechCapacityService", operation, attrs...)
}

// HasCapacity reports whether every block touched by the query can take one
// more unit of technical demand.
func (s *TechCapacityService) HasCapacity(ctx context.Context, query CapacityQuery) (bool, error) {
	err := s.CheckCapacity(ctx, query)
	var exceeded *TechCapacityExceededError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exceeded):
		return false, nil
	default:
		return false, err
	}
}

// CheckCapacity is HasCapacity reporting the saturated blocks as a
// *TechCapacityExceededError.
func (s *TechCapacityService) CheckCapacity(ctx context.Context, query CapacityQuery) (err error) {
	if s == nil {
		return fmt.Errorf("TechCapacityService is nil")
	}

	logger := s.loggerWith(ctx, "CheckCapacity",
		"date", scheduler.FormatDate(query.Date),
		"from", query.From.String(),
		"to", query.To.String(),
		"mode", string(query.Mode),
	)
	defer func() {
		switch {
		case err == nil:
			logger.DebugContext(ctx, "capacity available")
		case isRejection(err):
			logger.WarnContext(ctx, "capacity check rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to check capacity", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := validateSlot(query.Date, query.From, query.To)
	vErr.merge(ValidateBuffers(query.BufferBefore, query.BufferAfter))
	mode, modeErr := scheduler.ParseTechSupportMode(string(query.Mode))
	if modeErr != nil {
		vErr.add("mode", "must be SETUP_ONLY or ATTENDED")
	}
	if vErr.HasErrors() {
		return vErr
	}

	config, err := s.activeConfig(ctx)
	if err != nil {
		return err
	}

	window, err := scheduler.NewTimeWindow(query.Date, query.From, query.To)
	if err != nil {
		return err
	}
	candidate := scheduler.ComputeBlocks(window, query.BufferBefore, query.BufferAfter, mode, config.BlockMinutes)
	if len(candidate) == 0 {
		return nil
	}

	usage, _, err := s.usage(ctx, query.Date, query.IgnoreEventID, config.BlockMinutes)
	if err != nil {
		return err
	}

	if full := usage.Saturated(candidate, config.DefaultSlotsPerBlock); len(full) > 0 {
		return &TechCapacityExceededError{Date: scheduler.StartOfDay(query.Date), Blocks: full}
	}
	return nil
}

// GetCapacity returns the load of every block of the day.
func (s *TechCapacityService) GetCapacity(ctx context.Context, date time.Time) (blocks []BlockUsage, err error) {
	if s == nil {
		return nil, fmt.Errorf("TechCapacityService is nil")
	}

	logger := s.loggerWith(ctx, "GetCapacity", "date", scheduler.FormatDate(date))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load capacity", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "is required")
		return nil, vErr
	}

	config, err := s.activeConfig(ctx)
	if err != nil {
		return nil, err
	}
	usage, _, err := s.usage(ctx, date, "", config.BlockMinutes)
	if err != nil {
		return nil, err
	}

	for _, start := range scheduler.DayBlocks(config.BlockMinutes) {
		used := usage[start]
		available := config.DefaultSlotsPerBlock - used
		if available < 0 {
			available = 0
		}
		blocks = append(blocks, BlockUsage{
			From:      start,
			To:        scheduler.BlockEnd(start, config.BlockMinutes),
			Used:      used,
			Available: available,
		})
	}
	return blocks, nil
}

// GetEvents returns the technical support roster of the day ordered by start
// time, then id, with the blocks each event occupies.
func (s *TechCapacityService) GetEvents(ctx context.Context, date time.Time) (roster []TechEvent, err error) {
	if s == nil {
		return nil, fmt.Errorf("TechCapacityService is nil")
	}

	logger := s.loggerWith(ctx, "GetEvents", "date", scheduler.FormatDate(date))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load technical roster", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "is required")
		return nil, vErr
	}

	config, err := s.activeConfig(ctx)
	if err != nil {
		return nil, err
	}
	_, demands, err := s.usage(ctx, date, "", config.BlockMinutes)
	if err != nil {
		return nil, err
	}

	roster = make([]TechEvent, 0, len(demands))
	for _, d := range demands {
		roster = append(roster, TechEvent{
			EventID:      d.event.ID,
			Title:        d.event.Title,
			Status:       d.event.Status,
			SpaceID:      d.event.SpaceID,
			FreeLocation: d.event.FreeLocation,
			From:         d.event.From,
			To:           d.event.To,
			BufferBefore: d.event.BufferBefore,
			BufferAfter:  d.event.BufferAfter,
			Mode:         d.mode,
			Blocks:       d.blocks,
		})
	}
	return roster, nil
}

// activeConfig loads the active configuration, falling back to the built-in
// default only when none is marked active.
func (s *TechCapacityService) activeConfig(ctx context.Context) (persistence.TechCapacityConfig, error) {
	if s.configs == nil {
		return DefaultTechCapacityConfig(), nil
	}
	config, err := s.configs.ActiveTechCapacityConfig(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		return DefaultTechCapacityConfig(), nil
	}
	if err != nil {
		return persistence.TechCapacityConfig{}, fmt.Errorf("load tech capacity config: %w", err)
	}
	if config.BlockMinutes <= 0 {
		config.BlockMinutes = DefaultBlockMinutes
	}
	return config, nil
}

type techDemand struct {
	event  persistence.Event
	mode   scheduler.TechSupportMode
	blocks []scheduler.TimeOfDay
}

// usage tallies the blocks charged by every blocking technical event on date.
func (s *TechCapacityService) usage(ctx context.Context, date time.Time, ignoreID string, blockMinutes int) (scheduler.Usage, []techDemand, error) {
	if s.events == nil {
		return nil, nil, fmt.Errorf("event finder not configured")
	}
	events, err := s.events.ListEvents(ctx, persistence.EventFilter{
		Date:            date,
		Statuses:        persistence.BlockingStatuses(),
		ExcludeID:       ignoreID,
		TechSupportOnly: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list technical events: %w", err)
	}

	usage := make(scheduler.Usage)
	demands := make([]techDemand, 0, len(events))
	for _, event := range events {
		window, err := event.Window()
		if err != nil {
			return nil, nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
		mode, err := scheduler.ParseTechSupportMode(string(event.TechSupportMode))
		if err != nil {
			return nil, nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
		blocks := scheduler.ComputeBlocks(window, event.BufferBefore, event.BufferAfter, mode, blockMinutes)
		usage.Add(blocks)
		demands = append(demands, techDemand{event: event, mode: mode, blocks: blocks})
	}
	return usage, demands, nil
}
