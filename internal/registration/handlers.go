package registration

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"mentora/internal/dedupe"
	"mentora/internal/messaging"
	dErrors "mentora/pkg/domain-errors"
)

// EventHandlers binds the auth-side saga handlers to the message router.
type EventHandlers struct {
	service *Service
	markers dedupe.Store
	logger  *slog.Logger
}

func NewEventHandlers(service *Service, markers dedupe.Store, logger *slog.Logger) *EventHandlers {
	return &EventHandlers{
		service: service,
		markers: markers,
		logger:  logger.With("component", "saga-handlers"),
	}
}

func (h *EventHandlers) Register(router *messaging.Router) {
	router.Register(messaging.TypeRegistrationCompleted, h.handleRegistrationCompleted)
	router.Register(messaging.TypeEducatorCreated, h.handleEducatorCreated)
}

func (h *EventHandlers) handleRegistrationCompleted(ctx context.Context, body []byte) error {
	var event messaging.RegistrationCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "decode registration completed event")
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id in completed event")
	}

	return h.deduped(ctx, event.EventID, func() error {
		return h.service.FinalizeUserCreation(ctx, userID, event.CorrelationID, event.Success)
	})
}

func (h *EventHandlers) handleEducatorCreated(ctx context.Context, body []byte) error {
	var event messaging.EducatorCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "decode educator created event")
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id in educator event")
	}

	return h.deduped(ctx, event.EventID, func() error {
		return h.service.AssignEducatorRole(ctx, userID)
	})
}

// deduped runs fn once per event id, releasing the marker on failure so the
// retried delivery is processed rather than dropped as a duplicate.
func (h *EventHandlers) deduped(ctx context.Context, eventID string, fn func() error) error {
	first, err := h.markers.MarkIfFirst(ctx, eventID)
	if err != nil {
		return err
	}
	if !first {
		h.logger.Info("duplicate event skipped", "event_id", eventID)
		return nil
	}

	if err := fn(); err != nil {
		if unmarkErr := h.markers.Unmark(ctx, eventID); unmarkErr != nil {
			h.logger.Error("failed to release dedupe marker", "event_id", eventID, "error", unmarkErr)
		}
		return err
	}
	return nil
}
