package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

type conflictItemOutput struct {
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	SpaceID  string `json:"space_id,omitempty"`
	Date     string `json:"date"`
	From     string `json:"from"`
	To       string `json:"to"`
	Internal bool   `json:"internal"`
	Priority int    `json:"priority"`
}

type availabilityOutput struct {
	Available bool                 `json:"available"`
	Conflicts []conflictItemOutput `json:"conflicts"`
}

type occupancyOutput struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	From    string `json:"from"`
	To      string `json:"to"`
	Status  string `json:"status"`
}

type blockOutput struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Used      int    `json:"used"`
	Available int    `json:"available"`
}

type techEventOutput struct {
	EventID  string   `json:"event_id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Location string   `json:"location"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Mode     string   `json:"mode"`
	Blocks   []string `json:"blocks"`
}

type conflictOutput struct {
	Code             string `json:"code"`
	Status           string `json:"status"`
	HighEventID      string `json:"high_event_id"`
	DisplacedEventID string `json:"displaced_event_id"`
	SpaceID          string `json:"space_id,omitempty"`
	Date             string `json:"date"`
	From             string `json:"from"`
	To               string `json:"to"`
	Decision         string `json:"decision,omitempty"`
	DecisionBy       string `json:"decision_by,omitempty"`
	Reason           string `json:"reason,omitempty"`
	CreatedBy        string `json:"created_by"`
	CreatedAt        string `json:"created_at"`
	ClosedAt         string `json:"closed_at,omitempty"`
}

type displaceOutput struct {
	Conflicts []conflictOutput     `json:"conflicts"`
	Blocking  []conflictItemOutput `json:"blocking"`
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func toConflictItems(items []application.ConflictItem) []conflictItemOutput {
	out := make([]conflictItemOutput, 0, len(items))
	for _, item := range items {
		out = append(out, conflictItemOutput{
			EventID:  item.EventID,
			Title:    item.Title,
			Status:   string(item.Status),
			SpaceID:  item.SpaceID,
			Date:     scheduler.FormatDate(item.Date),
			From:     item.From.String(),
			To:       item.To.String(),
			Internal: item.Internal,
			Priority: item.Priority,
		})
	}
	return out
}

func toOccupancy(blocks []application.OccupancyBlock) []occupancyOutput {
	out := make([]occupancyOutput, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, occupancyOutput{
			EventID: block.EventID,
			Title:   block.Title,
			From:    block.From.String(),
			To:      block.To.String(),
			Status:  string(block.Status),
		})
	}
	return out
}

func toBlocks(blocks []application.BlockUsage) []blockOutput {
	out := make([]blockOutput, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, blockOutput{
			From:      block.From.String(),
			To:        block.To.String(),
			Used:      block.Used,
			Available: block.Available,
		})
	}
	return out
}

func toTechEvents(roster []application.TechEvent) []techEventOutput {
	out := make([]techEventOutput, 0, len(roster))
	for _, event := range roster {
		location := ""
		switch {
		case event.SpaceID != nil:
			location = *event.SpaceID
		case event.FreeLocation != nil:
			location = *event.FreeLocation
		}
		blocks := make([]string, 0, len(event.Blocks))
		for _, block := range event.Blocks {
			blocks = append(blocks, block.String())
		}
		out = append(out, techEventOutput{
			EventID:  event.EventID,
			Title:    event.Title,
			Status:   string(event.Status),
			Location: location,
			From:     event.From.String(),
			To:       event.To.String(),
			Mode:     string(event.Mode),
			Blocks:   blocks,
		})
	}
	return out
}

func toConflict(conflict persistence.PriorityConflict) conflictOutput {
	out := conflictOutput{
		Code:             conflict.Code,
		Status:           string(conflict.Status),
		HighEventID:      conflict.HighEventID,
		DisplacedEventID: conflict.DisplacedEventID,
		Date:             scheduler.FormatDate(conflict.ConflictDate),
		From:             conflict.From.String(),
		To:               conflict.To.String(),
		Decision:         string(conflict.Decision),
		DecisionBy:       conflict.DecisionBy,
		Reason:           conflict.Reason,
		CreatedBy:        conflict.CreatedBy,
		CreatedAt:        conflict.CreatedAt.UTC().Format(time.RFC3339),
	}
	if conflict.SpaceID != nil {
		out.SpaceID = *conflict.SpaceID
	}
	if conflict.ClosedAt != nil {
		out.ClosedAt = conflict.ClosedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toConflicts(conflicts []persistence.PriorityConflict) []conflictOutput {
	out := make([]conflictOutput, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, toConflict(conflict))
	}
	return out
}
