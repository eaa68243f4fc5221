package registration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_registrations_started_total",
		Help: "Registrations accepted and published to the saga.",
	})
	registrationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentora_registrations_finalized_total",
		Help: "Registrations finalized by outcome.",
	}, []string{"outcome"})
	compensations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_registration_compensations_total",
		Help: "Identities deleted because the initiation publish failed.",
	})
	sweeperDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentora_registration_sweeper_deletions_total",
		Help: "Stranded disabled identities reaped by the sweeper.",
	})
)
