package http

import (
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// fieldErrors collects request parsing failures in the same shape the
// services report validation failures.
type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f}
}

func (f fieldErrors) date(field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		f[field] = "is required"
		return time.Time{}
	}
	date, err := scheduler.ParseDate(value)
	if err != nil {
		f[field] = "must be a YYYY-MM-DD date"
		return time.Time{}
	}
	return date
}

func (f fieldErrors) timeOfDay(field, value string) scheduler.TimeOfDay {
	value = strings.TrimSpace(value)
	if value == "" {
		f[field] = "is required"
		return 0
	}
	t, err := scheduler.ParseTimeOfDay(value)
	if err != nil {
		f[field] = "must be an HH:MM time"
		return 0
	}
	return t
}

// ---------------------------- Requests ----------------------------

type availabilityRequest struct {
	Date          string `json:"date"`
	SpaceID       string `json:"space_id"`
	FreeLocation  string `json:"free_location"`
	From          string `json:"from"`
	To            string `json:"to"`
	BufferBefore  int    `json:"buffer_before"`
	BufferAfter   int    `json:"buffer_after"`
	IgnoreEventID string `json:"ignore_event_id"`
}

func (r availabilityRequest) toQuery() (application.AvailabilityQuery, error) {
	errs := fieldErrors{}
	query := application.AvailabilityQuery{
		Date:          errs.date("date", r.Date),
		SpaceID:       strings.TrimSpace(r.SpaceID),
		FreeLocation:  strings.TrimSpace(r.FreeLocation),
		From:          errs.timeOfDay("from", r.From),
		To:            errs.timeOfDay("to", r.To),
		BufferBefore:  r.BufferBefore,
		BufferAfter:   r.BufferAfter,
		IgnoreEventID: strings.TrimSpace(r.IgnoreEventID),
	}
	return query, errs.err()
}

type capacityRequest struct {
	Date          string `json:"date"`
	From          string `json:"from"`
	To            string `json:"to"`
	BufferBefore  int    `json:"buffer_before"`
	BufferAfter   int    `json:"buffer_after"`
	Mode          string `json:"mode"`
	IgnoreEventID string `json:"ignore_event_id"`
}

func (r capacityRequest) toQuery() (application.CapacityQuery, error) {
	errs := fieldErrors{}
	query := application.CapacityQuery{
		Date:          errs.date("date", r.Date),
		From:          errs.timeOfDay("from", r.From),
		To:            errs.timeOfDay("to", r.To),
		BufferBefore:  r.BufferBefore,
		BufferAfter:   r.BufferAfter,
		Mode:          scheduler.TechSupportMode(strings.ToUpper(strings.TrimSpace(r.Mode))),
		IgnoreEventID: strings.TrimSpace(r.IgnoreEventID),
	}
	return query, errs.err()
}

type rebookTargetRequest struct {
	Date    string `json:"date"`
	From    string `json:"from"`
	To      string `json:"to"`
	SpaceID string `json:"space_id"`
}

type decisionRequest struct {
	Decision string               `json:"decision"`
	Reason   string               `json:"reason"`
	Target   *rebookTargetRequest `json:"target"`
}

func (r decisionRequest) toRequest(code, actor string) (application.DecisionRequest, error) {
	errs := fieldErrors{}
	req := application.DecisionRequest{
		Code:      code,
		Decision:  persistence.ConflictDecision(strings.ToUpper(strings.TrimSpace(r.Decision))),
		DecidedBy: actor,
		Reason:    strings.TrimSpace(r.Reason),
	}
	if r.Target != nil {
		req.Target = &application.RebookTarget{
			Date:    errs.date("target.date", r.Target.Date),
			From:    errs.timeOfDay("target.from", r.Target.From),
			To:      errs.timeOfDay("target.to", r.Target.To),
			SpaceID: strings.TrimSpace(r.Target.SpaceID),
		}
	}
	return req, errs.err()
}

// ---------------------------- Responses ----------------------------

type conflictItemDTO struct {
	EventID      string `json:"event_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	SpaceID      string `json:"space_id"`
	Date         string `json:"date"`
	From         string `json:"from"`
	To           string `json:"to"`
	Internal     bool   `json:"internal"`
	Priority     int    `json:"priority"`
	BufferBefore int    `json:"buffer_before"`
	BufferAfter  int    `json:"buffer_after"`
}

func toConflictItemDTOs(items []application.ConflictItem) []conflictItemDTO {
	out := make([]conflictItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, conflictItemDTO{
			EventID:      item.EventID,
			Title:        item.Title,
			Status:       string(item.Status),
			SpaceID:      item.SpaceID,
			Date:         scheduler.FormatDate(item.Date),
			From:         item.From.String(),
			To:           item.To.String(),
			Internal:     item.Internal,
			Priority:     item.Priority,
			BufferBefore: item.BufferBefore,
			BufferAfter:  item.BufferAfter,
		})
	}
	return out
}

type availabilityResponse struct {
	Available bool              `json:"available"`
	Conflicts []conflictItemDTO `json:"conflicts"`
}

type occupancyBlockDTO struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	From    string `json:"from"`
	To      string `json:"to"`
	Status  string `json:"status"`
}

type occupancyResponse struct {
	SpaceID string              `json:"space_id"`
	Date    string              `json:"date"`
	Blocks  []occupancyBlockDTO `json:"blocks"`
}

func toOccupancyBlockDTOs(blocks []application.OccupancyBlock) []occupancyBlockDTO {
	out := make([]occupancyBlockDTO, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, occupancyBlockDTO{
			EventID: block.EventID,
			Title:   block.Title,
			From:    block.From.String(),
			To:      block.To.String(),
			Status:  string(block.Status),
		})
	}
	return out
}

type hasCapacityResponse struct {
	HasCapacity bool `json:"has_capacity"`
}

type blockUsageDTO struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Used      int    `json:"used"`
	Available int    `json:"available"`
}

type capacityResponse struct {
	Date   string          `json:"date"`
	Blocks []blockUsageDTO `json:"blocks"`
}

func toBlockUsageDTOs(blocks []application.BlockUsage) []blockUsageDTO {
	out := make([]blockUsageDTO, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, blockUsageDTO{
			From:      block.From.String(),
			To:        block.To.String(),
			Used:      block.Used,
			Available: block.Available,
		})
	}
	return out
}

type techEventDTO struct {
	EventID      string   `json:"event_id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	SpaceID      *string  `json:"space_id,omitempty"`
	FreeLocation *string  `json:"free_location,omitempty"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	BufferBefore int      `json:"buffer_before"`
	BufferAfter  int      `json:"buffer_after"`
	Mode         string   `json:"mode"`
	Blocks       []string `json:"blocks"`
}

type techEventsResponse struct {
	Date   string         `json:"date"`
	Events []techEventDTO `json:"events"`
}

func toTechEventDTOs(events []application.TechEvent) []techEventDTO {
	out := make([]techEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, techEventDTO{
			EventID:      event.EventID,
			Title:        event.Title,
			Status:       string(event.Status),
			SpaceID:      event.SpaceID,
			FreeLocation: event.FreeLocation,
			From:         event.From.String(),
			To:           event.To.String(),
			BufferBefore: event.BufferBefore,
			BufferAfter:  event.BufferAfter,
			Mode:         string(event.Mode),
			Blocks:       formatTimes(event.Blocks),
		})
	}
	return out
}

type priorityConflictDTO struct {
	ID               string  `json:"id"`
	Code             string  `json:"code"`
	HighEventID      string  `json:"high_event_id"`
	DisplacedEventID string  `json:"displaced_event_id"`
	SpaceID          *string `json:"space_id,omitempty"`
	ConflictDate     string  `json:"conflict_date"`
	From             string  `json:"from"`
	To               string  `json:"to"`
	Status           string  `json:"status"`
	Decision         string  `json:"decision,omitempty"`
	CreatedBy        string  `json:"created_by"`
	DecisionBy       string  `json:"decision_by,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	ClosedAt         *string `json:"closed_at,omitempty"`
}

func toPriorityConflictDTO(conflict persistence.PriorityConflict) priorityConflictDTO {
	dto := priorityConflictDTO{
		ID:               conflict.ID,
		Code:             conflict.Code,
		HighEventID:      conflict.HighEventID,
		DisplacedEventID: conflict.DisplacedEventID,
		SpaceID:          conflict.SpaceID,
		ConflictDate:     scheduler.FormatDate(conflict.ConflictDate),
		From:             conflict.From.String(),
		To:               conflict.To.String(),
		Status:           string(conflict.Status),
		Decision:         string(conflict.Decision),
		CreatedBy:        conflict.CreatedBy,
		DecisionBy:       conflict.DecisionBy,
		Reason:           conflict.Reason,
		CreatedAt:        conflict.CreatedAt.UTC().Format(time.RFC3339),
	}
	if conflict.ClosedAt != nil {
		closed := conflict.ClosedAt.UTC().Format(time.RFC3339)
		dto.ClosedAt = &closed
	}
	return dto
}

func toPriorityConflictDTOs(conflicts []persistence.PriorityConflict) []priorityConflictDTO {
	out := make([]priorityConflictDTO, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, toPriorityConflictDTO(conflict))
	}
	return out
}

type conflictResponse struct {
	Conflict priorityConflictDTO `json:"conflict"`
}

type conflictsResponse struct {
	Conflicts []priorityConflictDTO `json:"conflicts"`
}

type displaceResponse struct {
	Conflicts []priorityConflictDTO `json:"conflicts"`
	Blocking  []conflictItemDTO     `json:"blocking"`
}

func formatTimes(times []scheduler.TimeOfDay) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.String())
	}
	return out
}
