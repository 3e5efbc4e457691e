package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/example/venue-scheduler/internal/application"
)

// RedisPublisher publishes conflict events on a Redis pub/sub channel.
// Delivery is at most once: subscribers that are offline miss the event.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher returns a publisher using client. The channel defaults to
// ConflictQueue.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = ConflictQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// PublishConflictCreated publishes event as JSON.
func (p *RedisPublisher) PublishConflictCreated(ctx context.Context, event application.ConflictCreated) error {
	body, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal conflict event: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, body).Result()
	if err != nil {
		return fmt.Errorf("redis: publish conflict event: %w", err)
	}
	p.logger.DebugContext(ctx, "conflict event published",
		"transport", "redis",
		"conflict_code", event.Conflict.Code,
		"receivers", receivers,
	)
	return nil
}

// Channel returns the pub/sub channel events are published to.
func (p *RedisPublisher) Channel() string {
	return p.channel
}
