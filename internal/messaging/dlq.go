package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"mentora/internal/platform/config"
)

// DeadLetterSink is the terminal consumer for messages that exhausted their
// retries. It deserializes best-effort, records the diagnostic context an
// operator needs for manual remediation, and stops. There is no automatic
// recovery: dead-lettering bounds head-of-line blocking, it does not roll
// anything back.
type DeadLetterSink struct {
	provider *ConnectionProvider
	cfg      config.RabbitMQConfig
	queue    QueueSpec
	logger   *slog.Logger

	// notify, when set, is called for every dead-lettered message so the
	// owning service can record it outside the log stream.
	notify func(eventType, eventID, correlationID string)

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewDeadLetterSink(provider *ConnectionProvider, cfg config.RabbitMQConfig, queue QueueSpec, logger *slog.Logger) *DeadLetterSink {
	return &DeadLetterSink{
		provider: provider,
		cfg:      cfg,
		queue:    queue,
		logger:   logger,
	}
}

// OnDeadLetter installs a notification hook. Must be called before Run.
func (s *DeadLetterSink) OnDeadLetter(fn func(eventType, eventID, correlationID string)) {
	s.notify = fn
}

func (s *DeadLetterSink) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil && !s.channel.IsClosed() {
		return nil
	}

	conn, err := s.provider.Get(ctx)
	if err != nil {
		return fmt.Errorf("dlq sink: get connection: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("dlq sink: open channel: %w", err)
	}

	// One at a time; forensic logging has no concurrency needs.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		return fmt.Errorf("dlq sink: set QoS: %w", err)
	}

	if err := declareTopicExchange(channel, s.cfg.DeadLetterExchange); err != nil {
		channel.Close()
		return fmt.Errorf("dlq sink: declare DLX: %w", err)
	}
	if _, err := declareDurableQueue(channel, s.queue.DLQName, nil); err != nil {
		channel.Close()
		return fmt.Errorf("dlq sink: declare queue %q: %w", s.queue.DLQName, err)
	}
	if err := bindQueue(channel, s.queue.DLQName, s.queue.DLQRoutingKey, s.cfg.DeadLetterExchange); err != nil {
		channel.Close()
		return fmt.Errorf("dlq sink: bind queue: %w", err)
	}

	s.channel = channel
	return nil
}

// Run consumes the dead-letter queue until the context is cancelled.
func (s *DeadLetterSink) Run(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()

	deliveries, err := channel.Consume(s.queue.DLQName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("dlq sink: start consuming: %w", err)
	}

	s.logger.Info("dead-letter sink running", "queue", s.queue.DLQName)

	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("dlq sink: delivery stream closed")
			}
			s.record(msg)
			if err := msg.Ack(false); err != nil {
				s.logger.Error("dlq sink: ack failed", "message_id", msg.MessageId, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// record logs everything useful about a dead-lettered message. Parsing is
// best-effort: a payload that cannot be decoded is logged raw.
func (s *DeadLetterSink) record(msg amqp.Delivery) {
	eventType, _ := msg.Headers[TypeHeader].(string)

	attrs := []any{
		"queue", s.queue.DLQName,
		"event_type", eventType,
		"message_id", msg.MessageId,
		"correlation_id", msg.CorrelationId,
		"timestamp", msg.Timestamp,
		"death", deathSummary(msg.Headers),
	}

	var envelope Envelope
	if err := json.Unmarshal(msg.Body, &envelope); err == nil && envelope.EventID != "" {
		attrs = append(attrs, "event_id", envelope.EventID, "event_correlation_id", envelope.CorrelationID)
	} else {
		attrs = append(attrs, "raw_body", string(msg.Body))
	}

	s.logger.Error("message dead-lettered, manual remediation required", attrs...)

	if s.notify != nil {
		s.notify(eventType, envelope.EventID, envelope.CorrelationID)
	}
}

// deathSummary flattens the broker's x-death header into a readable string.
func deathSummary(headers amqp.Table) string {
	deaths, ok := headers["x-death"].([]any)
	if !ok {
		return ""
	}

	var parts []string
	for _, d := range deaths {
		info, ok := d.(amqp.Table)
		if !ok {
			continue
		}
		count, _ := info["count"].(int64)
		reason, _ := info["reason"].(string)
		queue, _ := info["queue"].(string)
		parts = append(parts, fmt.Sprintf("%s from %s x%d", reason, queue, count))
	}
	return strings.Join(parts, "; ")
}

func (s *DeadLetterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil && !s.channel.IsClosed() {
		return s.channel.Close()
	}
	return nil
}
