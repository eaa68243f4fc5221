package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentora_saga_events_published_total",
		Help: "Saga events confirmed by the broker, by event type",
	}, []string{"event_type"})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentora_saga_publish_failures_total",
		Help: "Publishes that were nacked, returned, or timed out",
	}, []string{"reason"})

	confirmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mentora_saga_publish_confirm_seconds",
		Help:    "Wall time spent waiting for broker delivery confirmation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentora_saga_events_consumed_total",
		Help: "Saga events handled, by event type and outcome",
	}, []string{"event_type", "outcome"})

	handlerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_saga_handler_retries_total",
		Help: "Handler attempts beyond the first for a delivery",
	})

	deadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_saga_dead_lettered_total",
		Help: "Deliveries rejected to the dead-letter queue after retries",
	})
)
