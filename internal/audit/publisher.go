package audit

import (
	"log/slog"
	"time"
)

const defaultBuffer = 256

// Publisher queues audit events for the background worker. Emit never
// blocks; when the buffer is full the event is dropped and counted, which
// keeps the saga's hot path independent of sink latency.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{
		inbox:  make(chan Event, defaultBuffer),
		logger: logger.With("component", "audit"),
	}
}

// Emit records an event. Safe to call on a nil publisher, which makes audit
// wiring optional for callers.
func (p *Publisher) Emit(event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		droppedEvents.Inc()
		p.logger.Warn("audit buffer full, event dropped", "action", event.Action)
	}
}

// Inbox exposes the queue for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
