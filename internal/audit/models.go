// Package audit captures the registration saga's decision points as an
// append-only trail. Emission is fire-and-forget so the saga never blocks on
// its own bookkeeping.
package audit

import "time"

// Saga actions recorded on the trail.
const (
	ActionRegistrationStarted  = "registration_started"
	ActionInitiationPublished  = "initiation_published"
	ActionPublishFailed        = "publish_failed"
	ActionProjectionOK         = "projection_ok"
	ActionProjectionFailed     = "projection_failed"
	ActionIdentityEnabled      = "identity_enabled"
	ActionIdentityDeleted      = "identity_deleted"
	ActionEducatorPromoted     = "educator_promoted"
	ActionMessageDeadLettered  = "message_dead_lettered"
	ActionSweepDeletedIdentity = "sweep_deleted_identity"
)

// Event is emitted from saga logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Action        string    `json:"action"`
	Detail        string    `json:"detail,omitempty"`
}
