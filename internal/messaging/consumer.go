package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"mentora/internal/platform/config"
)

// handlerTimeout caps a single handler attempt so a wedged handler cannot
// hold a delivery (and its prefetch slot) forever.
const handlerTimeout = 30 * time.Second

// QueueSpec describes one saga queue: its name, the routing patterns binding
// it to the topic exchange, and its dead-letter target.
type QueueSpec struct {
	Name          string
	Bindings      []string
	DLQName       string
	DLQRoutingKey string
}

// AuthQueue is the auth-side main queue receiving profile-to-auth traffic.
func AuthQueue() QueueSpec {
	return QueueSpec{
		Name:          AuthQueueName,
		Bindings:      []string{ProfileToAuthPattern},
		DLQName:       AuthDLQName,
		DLQRoutingKey: AuthDLQRoutingKey,
	}
}

// ProfileQueue is the profile-side main queue receiving auth-to-profile traffic.
func ProfileQueue() QueueSpec {
	return QueueSpec{
		Name:          ProfileQueueName,
		Bindings:      []string{AuthToProfilePattern},
		DLQName:       ProfileDLQName,
		DLQRoutingKey: ProfileDLQRoutingKey,
	}
}

// Consumer runs a bounded pool of workers over one saga queue. Handler
// failures are retried with backoff up to the policy ceiling, then the
// delivery is rejected without requeue so the broker dead-letters it.
// Acknowledgment is synchronous with the handler: a slow handler
// backpressures the prefetch window instead of losing the message.
type Consumer struct {
	provider *ConnectionProvider
	cfg      config.RabbitMQConfig
	queue    QueueSpec
	router   *Router
	logger   *slog.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewConsumer(provider *ConnectionProvider, cfg config.RabbitMQConfig, queue QueueSpec, router *Router, logger *slog.Logger) *Consumer {
	return &Consumer{
		provider: provider,
		cfg:      cfg,
		queue:    queue,
		router:   router,
		logger:   logger,
	}
}

// Initialize opens a channel and declares the full topology: dead-letter
// exchange and queue first, then the main exchange, then the main queue with
// its dead-letter arguments and message TTL, then the bindings.
func (c *Consumer) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}

	conn, err := c.provider.Get(ctx)
	if err != nil {
		return fmt.Errorf("consumer %s: get connection: %w", c.queue.Name, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer %s: open channel: %w", c.queue.Name, err)
	}

	if err := channel.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: set QoS: %w", c.queue.Name, err)
	}

	if err := declareTopicExchange(channel, c.cfg.DeadLetterExchange); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: declare DLX %q: %w", c.queue.Name, c.cfg.DeadLetterExchange, err)
	}
	if _, err := declareDurableQueue(channel, c.queue.DLQName, nil); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: declare DLQ %q: %w", c.queue.Name, c.queue.DLQName, err)
	}
	if err := bindQueue(channel, c.queue.DLQName, c.queue.DLQRoutingKey, c.cfg.DeadLetterExchange); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: bind DLQ: %w", c.queue.Name, err)
	}

	if err := declareTopicExchange(channel, c.cfg.Exchange); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: declare exchange %q: %w", c.queue.Name, c.cfg.Exchange, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    c.cfg.DeadLetterExchange,
		"x-dead-letter-routing-key": c.queue.DLQRoutingKey,
		"x-message-ttl":             c.cfg.MessageTTL.Milliseconds(),
	}
	if _, err := declareDurableQueue(channel, c.queue.Name, args); err != nil {
		channel.Close()
		return fmt.Errorf("consumer %s: declare queue: %w", c.queue.Name, err)
	}

	for _, pattern := range c.queue.Bindings {
		if err := bindQueue(channel, c.queue.Name, pattern, c.cfg.Exchange); err != nil {
			channel.Close()
			return fmt.Errorf("consumer %s: bind %q: %w", c.queue.Name, pattern, err)
		}
	}

	c.channel = channel
	return nil
}

// Run consumes until the context is cancelled or the delivery stream breaks.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	deliveries, err := channel.Consume(
		c.queue.Name,
		"",    // consumer tag, auto-generated
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer %s: start consuming: %w", c.queue.Name, err)
	}

	c.logger.Info("consuming", "queue", c.queue.Name, "workers", c.cfg.ConcurrentConsumers)

	var wg sync.WaitGroup
	workerErrs := make(chan error, c.cfg.ConcurrentConsumers)
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := range c.cfg.ConcurrentConsumers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-deliveries:
					if !ok {
						workerErrs <- fmt.Errorf("consumer %s: delivery stream closed", c.queue.Name)
						return
					}
					c.process(workerCtx, worker, msg)
				case <-workerCtx.Done():
					return
				}
			}
		}(i)
	}

	select {
	case err := <-workerErrs:
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return ctx.Err()
	}
}

// process handles one delivery end to end: retry loop, then ack on success
// or reject-without-requeue so the broker dead-letters the message.
func (c *Consumer) process(ctx context.Context, worker int, msg amqp.Delivery) {
	policy := RetryPolicy{
		MaxAttempts: c.cfg.HandlerMaxAttempts,
		Initial:     c.cfg.InitialRetryInterval,
		Max:         c.cfg.MaxRetryInterval,
		Multiplier:  c.cfg.RetryMultiplier,
	}

	parentCtx := propagation.TraceContext{}.Extract(ctx, headerCarrier(msg.Headers))
	eventType, _ := msg.Headers[TypeHeader].(string)

	spanCtx, span := tracer.Start(parentCtx, "saga.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.queue", c.queue.Name),
			attribute.String("saga.event_type", eventType),
			attribute.String("saga.correlation_id", msg.CorrelationId),
		),
	)
	defer span.End()

	attempt := 0
	err := processWithRetry(spanCtx, policy, func(retryCtx context.Context) error {
		attempt++
		if attempt > 1 {
			handlerRetries.Inc()
			c.logger.Warn("retrying delivery",
				"queue", c.queue.Name,
				"worker", worker,
				"message_id", msg.MessageId,
				"attempt", attempt,
			)
		}
		handleCtx, cancel := context.WithTimeout(retryCtx, handlerTimeout)
		defer cancel()
		return c.router.Handle(handleCtx, msg)
	})

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("ack failed after successful handling",
				"queue", c.queue.Name, "message_id", msg.MessageId, "error", ackErr)
		}
		return
	}

	if ctx.Err() != nil {
		// Shutdown mid-delivery: requeue so another consumer picks it up.
		_ = msg.Nack(false, true)
		return
	}

	deadLettered.Inc()
	c.logger.Error("delivery exhausted retries, dead-lettering",
		"queue", c.queue.Name,
		"worker", worker,
		"message_id", msg.MessageId,
		"correlation_id", msg.CorrelationId,
		"attempts", attempt,
		"error", err,
	)
	if nackErr := msg.Nack(false, false); nackErr != nil {
		c.logger.Error("nack failed", "queue", c.queue.Name, "message_id", msg.MessageId, "error", nackErr)
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel.Close()
	}
	return nil
}
