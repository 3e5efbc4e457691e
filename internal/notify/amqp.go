package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/venue-scheduler/internal/application"
)

// AMQPPublisher publishes conflict events to a durable RabbitMQ queue through
// the default exchange. The connection is opened lazily and re-dialled after
// a failure.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, queue: ConflictQueue, logger: logger, now: time.Now}
}

// PublishConflictCreated sends event as a persistent JSON message.
func (p *AMQPPublisher) PublishConflictCreated(ctx context.Context, event application.ConflictCreated) error {
	body, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal conflict event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.Conflict.Code,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	p.logger.DebugContext(ctx, "conflict event published", "transport", "amqp", "conflict_code", event.Conflict.Code)
	return nil
}

// Close closes the broker connection if one is open.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
