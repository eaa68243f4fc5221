package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"mentora/internal/platform/config"
	dErrors "mentora/pkg/domain-errors"
)

// returnGrace is how long a confirmed publish waits for a possible
// basic.return. The broker sends the return before the confirmation for the
// same delivery, but the two are handed to separate listener goroutines.
const returnGrace = 10 * time.Millisecond

// Publisher is the single point through which saga events leave a service.
// It publishes in confirm mode and blocks until the broker acknowledges
// physical receipt or the configured timeout elapses. There is no retry at
// this layer: a failed publish means "treat the event as never sent" and the
// caller runs its own compensation.
type Publisher struct {
	provider *ConnectionProvider
	exchange string
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	channel *amqp.Channel

	// pending maps the message id of an in-flight publish to a buffered
	// channel receiving its basic.return, if any.
	pending sync.Map
}

func NewPublisher(provider *ConnectionProvider, cfg config.RabbitMQConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		provider: provider,
		exchange: cfg.Exchange,
		timeout:  cfg.PublishConfirmTimeout,
		logger:   logger,
	}
}

// Initialize opens a confirm-mode channel and declares the topic exchange.
func (p *Publisher) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked(ctx)
}

func (p *Publisher) initLocked(ctx context.Context) error {
	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}

	conn, err := p.provider.Get(ctx)
	if err != nil {
		return fmt.Errorf("publisher: get connection: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("publisher: open channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		return fmt.Errorf("publisher: enable confirm mode: %w", err)
	}

	if err := declareTopicExchange(channel, p.exchange); err != nil {
		channel.Close()
		return fmt.Errorf("publisher: declare exchange %q: %w", p.exchange, err)
	}

	go p.handleReturns(channel.NotifyReturn(make(chan amqp.Return)))
	go p.watchChannel(channel)

	p.channel = channel
	return nil
}

func (p *Publisher) liveChannel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err := p.initLocked(ctx); err != nil {
			return nil, err
		}
	}
	return p.channel, nil
}

// Publish serializes the event, sends it with mandatory routing, and waits
// for the broker's confirmation. The returned error carries CodeUnavailable
// when the broker nacked or returned the message and CodeTimeout when the
// confirmation window lapsed.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event Event) error {
	meta := event.Meta()

	ctx, span := tracer.Start(ctx, "saga.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.routing_key", routingKey),
			attribute.String("saga.event_type", meta.EventType),
			attribute.String("saga.correlation_id", meta.CorrelationID),
		),
	)
	defer span.End()

	channel, err := p.liveChannel(ctx)
	if err != nil {
		publishFailures.WithLabelValues("channel").Inc()
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "publisher channel unavailable")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal event")
	}

	headers := amqp.Table{TypeHeader: meta.EventType}
	propagation.TraceContext{}.Inject(ctx, headerCarrier(headers))

	retCh := make(chan amqp.Return, 1)
	p.pending.Store(meta.EventID, retCh)
	defer p.pending.Delete(meta.EventID)

	start := time.Now()
	confirmation, err := channel.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory: unroutable messages come back as basic.return
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			Timestamp:     time.Now().UTC(),
			MessageId:     meta.EventID,
			CorrelationId: meta.CorrelationID,
			Headers:       headers,
			Body:          body,
		},
	)
	if err != nil {
		publishFailures.WithLabelValues("send").Inc()
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "publish event")
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-confirmation.Done():
		confirmDuration.Observe(time.Since(start).Seconds())
		if !confirmation.Acked() {
			publishFailures.WithLabelValues("nack").Inc()
			return dErrors.New(dErrors.CodeUnavailable, "event nacked by broker")
		}
	case <-timer.C:
		publishFailures.WithLabelValues("timeout").Inc()
		return dErrors.New(dErrors.CodeTimeout, fmt.Sprintf("no broker confirmation within %s", p.timeout))
	case <-ctx.Done():
		publishFailures.WithLabelValues("cancelled").Inc()
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "publish cancelled")
	}

	if ret, wasReturned := p.awaitReturn(retCh); wasReturned {
		publishFailures.WithLabelValues("returned").Inc()
		return dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("event returned by broker: %d %s", ret.ReplyCode, ret.ReplyText))
	}

	eventsPublished.WithLabelValues(meta.EventType).Inc()
	p.logger.Debug("event published",
		"event_type", meta.EventType,
		"event_id", meta.EventID,
		"correlation_id", meta.CorrelationID,
		"routing_key", routingKey,
	)
	return nil
}

// awaitReturn checks whether the broker returned the message as unroutable.
// A returned mandatory message is still acked, so a positive confirmation
// alone does not prove it reached a queue.
func (p *Publisher) awaitReturn(retCh <-chan amqp.Return) (amqp.Return, bool) {
	select {
	case ret := <-retCh:
		return ret, true
	case <-time.After(returnGrace):
		return amqp.Return{}, false
	}
}

func (p *Publisher) handleReturns(returns <-chan amqp.Return) {
	for ret := range returns {
		if ch, ok := p.pending.Load(ret.MessageId); ok {
			ch.(chan amqp.Return) <- ret
			continue
		}
		p.logger.Warn("unroutable message with no pending publish",
			"message_id", ret.MessageId,
			"routing_key", ret.RoutingKey,
			"reply_text", ret.ReplyText,
		)
	}
}

func (p *Publisher) watchChannel(ch *amqp.Channel) {
	err := <-ch.NotifyClose(make(chan *amqp.Error))

	p.mu.Lock()
	if p.channel == ch {
		p.channel = nil
		p.logger.Warn("publisher channel closed", "error", err)
	}
	p.mu.Unlock()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel.Close()
	}
	return nil
}
