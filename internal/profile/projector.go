package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mentora/internal/audit"
	"mentora/internal/dedupe"
	"mentora/internal/messaging"
	dErrors "mentora/pkg/domain-errors"
)

// EventPublisher is the slice of the messaging publisher the projector needs.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event messaging.Event) error
}

// Projector applies registration events to the profile store and reports the
// outcome back to the auth side. Every reply carries the correlation id of
// the event that triggered it so the orchestrator can join the saga.
type Projector struct {
	store     Store
	publisher EventPublisher
	markers   dedupe.Store
	audits    *audit.Publisher
	logger    *slog.Logger
}

func NewProjector(store Store, publisher EventPublisher, markers dedupe.Store, audits *audit.Publisher, logger *slog.Logger) *Projector {
	return &Projector{
		store:     store,
		publisher: publisher,
		markers:   markers,
		audits:    audits,
		logger:    logger.With("component", "projector"),
	}
}

// RegisterHandlers binds the projector to its event types.
func (p *Projector) RegisterHandlers(router *messaging.Router) {
	router.Register(messaging.TypeRegistrationInitiated, p.handleRegistrationInitiated)
}

func (p *Projector) handleRegistrationInitiated(ctx context.Context, body []byte) error {
	var event messaging.RegistrationInitiatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// A payload we cannot parse will never succeed on redelivery.
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "decode registration initiated event")
	}

	first, err := p.markers.MarkIfFirst(ctx, event.EventID)
	if err != nil {
		return err
	}
	if !first {
		p.logger.Info("duplicate event skipped",
			"event_id", event.EventID,
			"correlation_id", event.CorrelationID)
		return nil
	}

	if err := p.project(ctx, event); err != nil {
		// Release the marker so the retried delivery is not mistaken for a
		// duplicate and silently dropped.
		if unmarkErr := p.markers.Unmark(ctx, event.EventID); unmarkErr != nil {
			p.logger.Error("failed to release dedupe marker",
				"event_id", event.EventID, "error", unmarkErr)
		}
		return err
	}
	return nil
}

// project attempts the insert and always answers with a completion event.
// Projection failures are reported as Success=false rather than returned, so
// the orchestrator can compensate instead of the message dying in the DLQ.
func (p *Projector) project(ctx context.Context, event messaging.RegistrationInitiatedEvent) error {
	userID, firstErr := uuid.Parse(event.UserID)
	birthDate, dateErr := time.Parse(messaging.BirthDateLayout, event.BirthDate)

	var failure string
	switch {
	case firstErr != nil:
		failure = "invalid user id"
	case dateErr != nil:
		failure = "invalid birth date"
	default:
		_, err := p.store.InsertIfAbsent(ctx, UserProfile{
			ID:        userID,
			FirstName: event.FirstName,
			LastName:  event.LastName,
			BirthDate: birthDate,
		})
		if err != nil {
			failure = "profile persistence failed"
			p.logger.Error("profile insert failed",
				"user_id", event.UserID,
				"correlation_id", event.CorrelationID,
				"error", err)
		}
	}

	if failure != "" {
		p.audits.Emit(audit.Event{
			CorrelationID: event.CorrelationID,
			UserID:        event.UserID,
			Action:        audit.ActionProjectionFailed,
			Detail:        failure,
		})
		completed := messaging.NewRegistrationCompletedEvent(event.CorrelationID, event.UserID, false, failure)
		return p.publisher.Publish(ctx, messaging.RegistrationCompletedKey, completed)
	}

	p.audits.Emit(audit.Event{
		CorrelationID: event.CorrelationID,
		UserID:        event.UserID,
		Action:        audit.ActionProjectionOK,
	})
	completed := messaging.NewRegistrationCompletedEvent(event.CorrelationID, event.UserID, true, "")
	return p.publisher.Publish(ctx, messaging.RegistrationCompletedKey, completed)
}

// FindProfile reads a projected profile.
func (p *Projector) FindProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	return p.store.FindByID(ctx, userID)
}

// PromoteEducator flips the educator flag and announces the promotion. The
// flip is idempotent: a repeated promotion changes nothing and publishes
// nothing.
func (p *Projector) PromoteEducator(ctx context.Context, userID uuid.UUID) error {
	changed, err := p.store.SetEducator(ctx, userID, true)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	p.audits.Emit(audit.Event{
		UserID: userID.String(),
		Action: audit.ActionEducatorPromoted,
	})
	event := messaging.NewEducatorCreatedEvent(userID.String())
	return p.publisher.Publish(ctx, messaging.EducatorCreatedKey, event)
}
