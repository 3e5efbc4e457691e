// Package notify publishes priority conflict domain events to downstream
// consumers such as e-mail or alerting workers.
package notify

import (
	"encoding/json"
	"time"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// ConflictQueue is the queue and channel name conflict events are published to.
const ConflictQueue = "priority.conflict.created"

// ConflictMessage is the wire payload of a conflict-created event. It carries
// enough context for consumers to notify the affected organisers without
// querying the engine.
type ConflictMessage struct {
	ConflictID          string `json:"conflict_id"`
	ConflictCode        string `json:"conflict_code"`
	ConflictDate        string `json:"conflict_date"`
	SpaceID             string `json:"space_id,omitempty"`
	From                string `json:"from"`
	To                  string `json:"to"`
	HighEventID         string `json:"high_event_id"`
	HighEventTitle      string `json:"high_event_title"`
	HighEventPriority   int    `json:"high_event_priority"`
	DisplacedEventID    string `json:"displaced_event_id"`
	DisplacedEventTitle string `json:"displaced_event_title"`
	DisplacedPriority   int    `json:"displaced_event_priority"`
	CreatedBy           string `json:"created_by"`
	CreatedAt           string `json:"created_at"`
}

// NewConflictMessage flattens a domain event into its wire payload.
func NewConflictMessage(event application.ConflictCreated) ConflictMessage {
	msg := ConflictMessage{
		ConflictID:          event.Conflict.ID,
		ConflictCode:        event.Conflict.Code,
		ConflictDate:        scheduler.FormatDate(event.Conflict.ConflictDate),
		From:                event.Conflict.From.String(),
		To:                  event.Conflict.To.String(),
		HighEventID:         event.HighEvent.ID,
		HighEventTitle:      event.HighEvent.Title,
		HighEventPriority:   event.HighEvent.Priority,
		DisplacedEventID:    event.Displaced.ID,
		DisplacedEventTitle: event.Displaced.Title,
		DisplacedPriority:   event.Displaced.Priority,
		CreatedBy:           event.Conflict.CreatedBy,
		CreatedAt:           event.Conflict.CreatedAt.UTC().Format(time.RFC3339),
	}
	if event.Conflict.SpaceID != nil {
		msg.SpaceID = *event.Conflict.SpaceID
	}
	return msg
}

func encode(event application.ConflictCreated) ([]byte, error) {
	return json.Marshal(NewConflictMessage(event))
}
