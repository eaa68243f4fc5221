package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_audit_events_dropped_total",
		Help: "Audit events dropped because the buffer was full.",
	})
	persistedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_audit_events_persisted_total",
		Help: "Audit events persisted to the trail.",
	})
)
