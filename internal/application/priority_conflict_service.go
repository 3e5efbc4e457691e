package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// ConflictCodePrefix starts every priority conflict code.
const ConflictCodePrefix = "PRIO-"

// ConflictCodeDatePrefix returns the code prefix shared by all conflicts of a day,
// e.g. "PRIO-20250314-".
func ConflictCodeDatePrefix(date time.Time) string {
	return ConflictCodePrefix + date.Format("20060102") + "-"
}

// FormatConflictCode renders the code of the sequence-th conflict of a day.
func FormatConflictCode(date time.Time, sequence int) string {
	return fmt.Sprintf("%s%05d", ConflictCodeDatePrefix(date), sequence)
}

// PriorityConflictDeps wires the collaborators of PriorityConflictService.
type PriorityConflictDeps struct {
	Transactor   persistence.Transactor
	Repositories persistence.Repositories
	Audit        AuditSink
	Publisher    ConflictPublisher
	Locker       Locker
	IDGenerator  func() string
	Now          func() time.Time
	Location     *time.Location
	Logger       *slog.Logger
}

// PriorityConflictService registers displaced events and applies the manual
// decisions that resolve them.
type PriorityConflictService struct {
	tx          persistence.Transactor
	repos       persistence.Repositories
	audit       AuditSink
	publisher   ConflictPublisher
	locker      Locker
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewPriorityConflictService constructs the conflict workflow service.
func NewPriorityConflictService(deps PriorityConflictDeps) *PriorityConflictService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &PriorityConflictService{
		tx:          deps.Transactor,
		repos:       deps.Repositories,
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		locker:      deps.Locker,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		location:    deps.Location,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *PriorityConflictService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PriorityConflictService", operation, attrs...)
}

// RegisterConflicts records one OPEN conflict per displaced event and flags
// each displaced event for rebooking. An event already tracked by an OPEN
// conflict for the same high event is flagged again and its existing conflict
// is returned instead of a new one.
func (s *PriorityConflictService) RegisterConflicts(ctx context.Context, high persistence.Event, displaced []persistence.Event, initiator string) (conflicts []persistence.PriorityConflict, err error) {
	if s == nil {
		err = fmt.Errorf("PriorityConflictService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegisterConflicts",
		"high_event_id", high.ID,
		"displaced", len(displaced),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register conflicts", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "conflicts registered", "conflicts", len(conflicts))
	}()

	if strings.TrimSpace(high.ID) == "" {
		vErr := &ValidationError{}
		vErr.add("high_event_id", "is required")
		err = vErr
		return
	}
	if vErr := validateHighStatus(high); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.tx == nil {
		err = fmt.Errorf("transactor not configured")
		return
	}

	var created []ConflictCreated
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var txErr error
		conflicts, created, txErr = s.register(ctx, repos, high, displaced, initiator)
		return txErr
	})
	if err != nil {
		conflicts = nil
		return
	}

	s.publish(ctx, logger, created)
	return
}

// Displace finds the bookings that collide with a high priority event and
// registers a conflict for each one with strictly lower priority. Colliding
// bookings of equal or higher priority are reported as blocking.
func (s *PriorityConflictService) Displace(ctx context.Context, highEventID, initiator string) (result DisplaceResult, err error) {
	if s == nil {
		err = fmt.Errorf("PriorityConflictService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Displace", "high_event_id", highEventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to displace events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "events displaced",
			"conflicts", len(result.Conflicts),
			"blocking", len(result.Blocking),
		)
	}()

	if strings.TrimSpace(highEventID) == "" {
		vErr := &ValidationError{}
		vErr.add("high_event_id", "is required")
		err = vErr
		return
	}
	if s.tx == nil {
		err = fmt.Errorf("transactor not configured")
		return
	}

	var created []ConflictCreated
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		result = DisplaceResult{}
		created = nil

		high, err := repos.Events.GetEvent(ctx, highEventID)
		if err != nil {
			return mapRepoError(err)
		}
		if vErr := validateHighStatus(high); vErr.HasErrors() {
			return vErr
		}
		if high.SpaceID == nil {
			return nil
		}

		availability := NewAvailabilityServiceWithLogger(repos.Events, s.logger)
		check, err := availability.CheckAvailability(ctx, AvailabilityQuery{
			Date:          high.Date,
			SpaceID:       *high.SpaceID,
			From:          high.From,
			To:            high.To,
			BufferBefore:  high.BufferBefore,
			BufferAfter:   high.BufferAfter,
			IgnoreEventID: high.ID,
		})
		if err != nil {
			return err
		}

		var displaced []persistence.Event
		for _, item := range check.Conflicts {
			if item.Priority >= high.Priority {
				result.Blocking = append(result.Blocking, item)
				continue
			}
			event, err := repos.Events.GetEvent(ctx, item.EventID)
			if err != nil {
				return mapRepoError(err)
			}
			displaced = append(displaced, event)
		}
		if len(displaced) == 0 {
			return nil
		}

		result.Conflicts, created, err = s.register(ctx, repos, high, displaced, initiator)
		return err
	})
	if err != nil {
		result = DisplaceResult{}
		return
	}

	s.publish(ctx, logger, created)
	return
}

// validateHighStatus rejects a high event that does not hold its slot.
// Only a blocking status may displace other bookings.
func validateHighStatus(high persistence.Event) *ValidationError {
	vErr := &ValidationError{}
	if !high.Status.Blocking() {
		vErr.add("high_event_id", "must be confirmed")
	}
	return vErr
}

// GetOpenConflicts lists the OPEN conflicts raised by a high priority event.
func (s *PriorityConflictService) GetOpenConflicts(ctx context.Context, highEventID string) (conflicts []persistence.PriorityConflict, err error) {
	if s == nil {
		return nil, fmt.Errorf("PriorityConflictService is nil")
	}
	if strings.TrimSpace(highEventID) == "" {
		vErr := &ValidationError{}
		vErr.add("high_event_id", "is required")
		return nil, vErr
	}
	if s.repos.Conflicts == nil {
		return nil, fmt.Errorf("conflict repository not configured")
	}

	conflicts, err = s.repos.Conflicts.ListConflicts(ctx, persistence.ConflictFilter{
		HighEventID: highEventID,
		Status:      persistence.ConflictStatusOpen,
	})
	if err != nil {
		s.loggerWith(ctx, "GetOpenConflicts", "high_event_id", highEventID).
			ErrorContext(ctx, "failed to list conflicts", "error", err, "error_kind", ErrorKind(err))
		return nil, mapRepoError(err)
	}
	return conflicts, nil
}

// GetConflict returns a conflict by code.
func (s *PriorityConflictService) GetConflict(ctx context.Context, code string) (persistence.PriorityConflict, error) {
	if s == nil {
		return persistence.PriorityConflict{}, fmt.Errorf("PriorityConflictService is nil")
	}
	if s.repos.Conflicts == nil {
		return persistence.PriorityConflict{}, fmt.Errorf("conflict repository not configured")
	}
	conflict, err := s.repos.Conflicts.GetConflictByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return persistence.PriorityConflict{}, mapRepoError(err)
	}
	return conflict, nil
}

// ApplyDecision closes an OPEN conflict. KEEP clears the rebooking flag of
// the displaced event. REBOOK_OTHER validates the target slot for
// availability and, when needed, technical capacity before moving the event.
// The event mutation and the conflict closure commit together.
func (s *PriorityConflictService) ApplyDecision(ctx context.Context, req DecisionRequest) (conflict persistence.PriorityConflict, err error) {
	if s == nil {
		err = fmt.Errorf("PriorityConflictService is nil")
		return
	}

	rebook := req.Decision == persistence.ConflictDecisionRebookOther
	decision := persistence.ConflictDecisionKeep
	if rebook {
		decision = persistence.ConflictDecisionRebookOther
	}

	logger := s.loggerWith(ctx, "ApplyDecision",
		"conflict_code", req.Code,
		"decision", string(decision),
		"decided_by", req.DecidedBy,
	)
	defer func() {
		switch {
		case err == nil:
			logger.InfoContext(ctx, "conflict closed", "displaced_event_id", conflict.DisplacedEventID)
		case isRejection(err):
			logger.WarnContext(ctx, "decision rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to apply decision", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := validateDecision(req, rebook)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.tx == nil {
		err = fmt.Errorf("transactor not configured")
		return
	}

	if rebook && s.locker != nil {
		key := rebookLockKey(req.Target.SpaceID, req.Target.Date)
		var release func(context.Context) error
		release, err = s.locker.Acquire(ctx, key)
		if err != nil {
			if errors.Is(err, ErrLockNotAcquired) {
				err = fmt.Errorf("%w: %v", ErrBusy, err)
			}
			return
		}
		defer func() {
			if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
				logger.WarnContext(ctx, "failed to release rebooking lock", "key", key, "error", releaseErr)
			}
		}()
	}

	var (
		change         *ScheduleChange
		spaceRejection *SpaceConflictRejection
		techRejection  *TechCapacityRejection
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		change, spaceRejection, techRejection = nil, nil, nil

		current, err := repos.Conflicts.GetConflictByCode(ctx, strings.TrimSpace(req.Code))
		if err != nil {
			return mapRepoError(err)
		}
		if current.Status == persistence.ConflictStatusClosed {
			return ErrAlreadyClosed
		}

		event, err := repos.Events.GetEvent(ctx, current.DisplacedEventID)
		if err != nil {
			return mapRepoError(err)
		}
		now := s.now()
		previous := event

		if rebook {
			if err := s.validateTarget(ctx, repos, event, *req.Target, req.DecidedBy, &spaceRejection, &techRejection); err != nil {
				return err
			}
			event.Date = scheduler.StartOfDay(req.Target.Date)
			event.From = req.Target.From
			event.To = req.Target.To
			spaceID := strings.TrimSpace(req.Target.SpaceID)
			event.SpaceID = &spaceID
			event.FreeLocation = nil
			change = &ScheduleChange{Previous: previous, Actor: req.DecidedBy}
		}

		event.RequiresRebooking = false
		event.LastModifiedBy = req.DecidedBy
		event.UpdatedAt = now
		if err := repos.Events.UpdateEvent(ctx, event); err != nil {
			return mapRepoError(err)
		}
		if change != nil {
			change.Event = event
		}

		closedAt := now
		current.Status = persistence.ConflictStatusClosed
		current.Decision = decision
		current.DecisionBy = req.DecidedBy
		current.Reason = strings.TrimSpace(req.Reason)
		current.ClosedAt = &closedAt
		if err := repos.Conflicts.UpdateConflict(ctx, current); err != nil {
			return mapRepoError(err)
		}
		conflict = current
		return nil
	})
	if err != nil {
		conflict = persistence.PriorityConflict{}
		s.recordRejection(ctx, logger, spaceRejection, techRejection)
		return
	}

	if change != nil && s.audit != nil {
		if auditErr := s.audit.RecordScheduleChange(ctx, *change); auditErr != nil {
			logger.WarnContext(ctx, "failed to record schedule change", "event_id", change.Event.ID, "error", auditErr)
		}
	}
	return
}

// validateTarget runs the availability and capacity checks for a rebooking
// target inside the decision transaction.
func (s *PriorityConflictService) validateTarget(
	ctx context.Context,
	repos persistence.Repositories,
	event persistence.Event,
	target RebookTarget,
	actor string,
	spaceRejection **SpaceConflictRejection,
	techRejection **TechCapacityRejection,
) error {
	spaceID := strings.TrimSpace(target.SpaceID)
	space, err := repos.Spaces.GetSpace(ctx, spaceID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("load space: %w", err)
	}
	if err != nil || !space.Active {
		vErr := &ValidationError{}
		vErr.add("target.space_id", "must reference an active space")
		return vErr
	}

	availability := NewAvailabilityServiceWithLogger(repos.Events, s.logger)
	result, err := availability.CheckAvailability(ctx, AvailabilityQuery{
		Date:          target.Date,
		SpaceID:       spaceID,
		From:          target.From,
		To:            target.To,
		BufferBefore:  event.BufferBefore,
		BufferAfter:   event.BufferAfter,
		IgnoreEventID: event.ID,
	})
	if err != nil {
		return err
	}
	window, err := scheduler.NewTimeWindow(target.Date, target.From, target.To)
	if err != nil {
		return err
	}
	if !result.Available {
		*spaceRejection = &SpaceConflictRejection{
			EventID:   event.ID,
			Actor:     actor,
			SpaceID:   spaceID,
			Window:    window,
			Conflicts: result.Conflicts,
		}
		return &AvailabilityConflictError{Result: result}
	}

	if !event.RequiresTechSupport {
		return nil
	}
	capacity := NewTechCapacityServiceWithLogger(repos.Events, repos.TechCapacity, s.logger)
	err = capacity.CheckCapacity(ctx, CapacityQuery{
		Date:          target.Date,
		From:          target.From,
		To:            target.To,
		BufferBefore:  event.BufferBefore,
		BufferAfter:   event.BufferAfter,
		Mode:          event.TechSupportMode,
		IgnoreEventID: event.ID,
	})
	var exceeded *TechCapacityExceededError
	if errors.As(err, &exceeded) {
		*techRejection = &TechCapacityRejection{
			EventID: event.ID,
			Actor:   actor,
			Window:  window,
			Blocks:  exceeded.Blocks,
		}
	}
	return err
}

// register runs inside a transaction. Sequence numbers are seeded once per
// day from the persisted count and then incremented in memory so a batch never
// reuses a code.
func (s *PriorityConflictService) register(ctx context.Context, repos persistence.Repositories, high persistence.Event, displaced []persistence.Event, initiator string) ([]persistence.PriorityConflict, []ConflictCreated, error) {
	var (
		conflicts []persistence.PriorityConflict
		created   []ConflictCreated
		seen      = make(map[string]struct{}, len(displaced))
		sequences = make(map[string]int)
	)

	for _, candidate := range displaced {
		if candidate.ID == "" || candidate.ID == high.ID {
			continue
		}
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		seen[candidate.ID] = struct{}{}

		event, err := repos.Events.GetEvent(ctx, candidate.ID)
		if err != nil {
			return nil, nil, mapRepoError(err)
		}
		now := s.now()
		event.RequiresRebooking = true
		event.UpdatedAt = now
		if err := repos.Events.UpdateEvent(ctx, event); err != nil {
			return nil, nil, mapRepoError(err)
		}

		existing, err := repos.Conflicts.FindOpenConflict(ctx, high.ID, event.ID)
		switch {
		case err == nil:
			conflicts = append(conflicts, existing)
			continue
		case !errors.Is(err, persistence.ErrNotFound):
			return nil, nil, fmt.Errorf("find open conflict: %w", err)
		}

		date := s.conflictDate(high, event)
		prefix := ConflictCodeDatePrefix(date)
		sequence, ok := sequences[prefix]
		if !ok {
			count, err := repos.Conflicts.CountConflictCodes(ctx, prefix)
			if err != nil {
				return nil, nil, fmt.Errorf("count conflict codes: %w", err)
			}
			sequence = count
		}
		sequence++
		sequences[prefix] = sequence

		conflict := persistence.PriorityConflict{
			ID:               s.idGenerator(),
			Code:             FormatConflictCode(date, sequence),
			HighEventID:      high.ID,
			DisplacedEventID: event.ID,
			SpaceID:          firstSpace(high.SpaceID, event.SpaceID),
			ConflictDate:     date,
			From:             high.From,
			To:               high.To,
			Status:           persistence.ConflictStatusOpen,
			CreatedBy:        initiator,
			CreatedAt:        now,
		}
		if conflict.From >= conflict.To {
			conflict.From, conflict.To = event.From, event.To
		}
		if err := repos.Conflicts.CreateConflict(ctx, conflict); err != nil {
			return nil, nil, mapRepoError(err)
		}
		conflicts = append(conflicts, conflict)
		created = append(created, ConflictCreated{Conflict: conflict, HighEvent: high, Displaced: event})
	}
	return conflicts, created, nil
}

// conflictDate prefers the high event's date, then the displaced event's, then today.
func (s *PriorityConflictService) conflictDate(high, displaced persistence.Event) time.Time {
	switch {
	case !high.Date.IsZero():
		return scheduler.StartOfDay(high.Date)
	case !displaced.Date.IsZero():
		return scheduler.StartOfDay(displaced.Date)
	default:
		today := s.now().In(s.location)
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func (s *PriorityConflictService) publish(ctx context.Context, logger *slog.Logger, created []ConflictCreated) {
	if s.publisher == nil {
		return
	}
	for _, event := range created {
		if err := s.publisher.PublishConflictCreated(ctx, event); err != nil {
			logger.WarnContext(ctx, "failed to publish conflict", "conflict_code", event.Conflict.Code, "error", err)
		}
	}
}

func (s *PriorityConflictService) recordRejection(ctx context.Context, logger *slog.Logger, space *SpaceConflictRejection, tech *TechCapacityRejection) {
	if s.audit == nil {
		return
	}
	if space != nil {
		if err := s.audit.RecordSpaceConflict(ctx, *space); err != nil {
			logger.WarnContext(ctx, "failed to record space conflict", "event_id", space.EventID, "error", err)
		}
	}
	if tech != nil {
		if err := s.audit.RecordTechCapacityReject(ctx, *tech); err != nil {
			logger.WarnContext(ctx, "failed to record capacity rejection", "event_id", tech.EventID, "error", err)
		}
	}
}

func validateDecision(req DecisionRequest, rebook bool) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(req.Code) == "" {
		vErr.add("code", "is required")
	}
	if strings.TrimSpace(req.DecidedBy) == "" {
		vErr.add("decided_by", "is required")
	}
	if !rebook {
		return vErr
	}
	if req.Target == nil {
		vErr.add("target", "is required for REBOOK_OTHER")
		return vErr
	}
	if strings.TrimSpace(req.Target.SpaceID) == "" {
		vErr.add("target.space_id", "is required")
	}
	slot := validateSlot(req.Target.Date, req.Target.From, req.Target.To)
	for field, msg := range slot.FieldErrors {
		vErr.add("target."+field, msg)
	}
	return vErr
}

func rebookLockKey(spaceID string, date time.Time) string {
	return "rebook:" + strings.TrimSpace(spaceID) + ":" + scheduler.FormatDate(date)
}

func firstSpace(candidates ...*string) *string {
	for _, candidate := range candidates {
		if candidate != nil && *candidate != "" {
			id := *candidate
			return &id
		}
	}
	return nil
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("record", err.Error())
		return vErr
	default:
		return err
	}
}
