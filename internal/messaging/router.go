package messaging

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes the payload of one event type. Returning an error
// triggers the consumer's bounded redelivery and, eventually, dead-lettering.
type HandlerFunc func(ctx context.Context, body []byte) error

// Router dispatches deliveries to handlers keyed by the event type header.
// Types with no registered handler are logged and dropped: they are not
// malformed, just uninteresting to this consumer, so dead-lettering them
// would only pollute the DLQ.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register adds a handler for an event type discriminator.
func (r *Router) Register(eventType string, handler HandlerFunc) {
	r.handlers[eventType] = handler
}

// Handle routes one delivery. The event type comes from transport metadata so
// dispatch never parses the payload.
func (r *Router) Handle(ctx context.Context, msg amqp.Delivery) error {
	eventType, _ := msg.Headers[TypeHeader].(string)

	handler, ok := r.handlers[eventType]
	if !ok {
		r.logger.Warn("dropping event with no registered handler",
			"event_type", eventType,
			"message_id", msg.MessageId,
			"correlation_id", msg.CorrelationId,
		)
		eventsConsumed.WithLabelValues(eventType, "dropped").Inc()
		return nil
	}

	if err := handler(ctx, msg.Body); err != nil {
		eventsConsumed.WithLabelValues(eventType, "error").Inc()
		return err
	}
	eventsConsumed.WithLabelValues(eventType, "ok").Inc()
	return nil
}
