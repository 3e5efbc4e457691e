package notify

import (
	"context"
	"log/slog"

	"github.com/example/venue-scheduler/internal/application"
)

// LogPublisher writes conflict events to the structured log. It is the
// default transport when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher writing to logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// PublishConflictCreated logs the event at info level.
func (p *LogPublisher) PublishConflictCreated(ctx context.Context, event application.ConflictCreated) error {
	msg := NewConflictMessage(event)
	p.logger.InfoContext(ctx, "priority conflict created",
		"conflict_code", msg.ConflictCode,
		"conflict_date", msg.ConflictDate,
		"space_id", msg.SpaceID,
		"high_event_id", msg.HighEventID,
		"displaced_event_id", msg.DisplacedEventID,
		"created_by", msg.CreatedBy,
	)
	return nil
}
