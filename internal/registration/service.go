// Package registration orchestrates the user registration saga on the auth
// side: it provisions the disabled identity, publishes the initiating event,
// and finalizes the identity when the profile side reports back.
package registration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mentora/internal/audit"
	"mentora/internal/identity"
	"mentora/internal/messaging"
	dErrors "mentora/pkg/domain-errors"
)

// Status is the externally visible registration state, derived on demand
// from the identity's enablement rather than stored anywhere.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// EventPublisher is the slice of the messaging publisher the service needs.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event messaging.Event) error
}

// RegisterRequest carries the validated registration input.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	BirthDate time.Time
}

// RegisterResult returns the minted status token alongside the new user id.
type RegisterResult struct {
	UserID      uuid.UUID
	StatusToken string
}

type Service struct {
	identities identity.Provider
	publisher  EventPublisher
	tokens     *TokenService
	pending    *PendingLedger
	audits     *audit.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(identities identity.Provider, publisher EventPublisher, tokens *TokenService, pending *PendingLedger, audits *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		identities: identities,
		publisher:  publisher,
		tokens:     tokens,
		pending:    pending,
		audits:     audits,
		logger:     logger.With("component", "registration"),
		now:        time.Now,
	}
}

// Register starts the saga. The identity is created disabled first; if the
// initiating event cannot be published the identity is deleted again so no
// half-registered account survives.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	userID, err := s.identities.CreateDisabled(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	s.audits.Emit(audit.Event{
		UserID: userID.String(),
		Action: audit.ActionRegistrationStarted,
	})

	event := messaging.NewRegistrationInitiatedEvent(
		userID.String(),
		req.Username,
		req.FirstName,
		req.LastName,
		req.BirthDate.Format(messaging.BirthDateLayout),
	)

	if err := s.publisher.Publish(ctx, messaging.RegistrationInitiatedKey, event); err != nil {
		s.compensate(ctx, userID, event.CorrelationID, err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "registration temporarily unavailable")
	}

	s.audits.Emit(audit.Event{
		CorrelationID: event.CorrelationID,
		UserID:        userID.String(),
		Action:        audit.ActionInitiationPublished,
	})

	token, err := s.tokens.Mint(userID)
	if err != nil {
		// The saga is already in flight; surface the token failure but leave
		// the identity to complete normally.
		return nil, err
	}

	s.pending.Add(userID, s.now())
	registrationsStarted.Inc()
	s.logger.Info("registration initiated",
		"user_id", userID,
		"correlation_id", event.CorrelationID)

	return &RegisterResult{UserID: userID, StatusToken: token}, nil
}

// compensate deletes the identity created for a saga that never launched.
func (s *Service) compensate(ctx context.Context, userID uuid.UUID, correlationID string, cause error) {
	s.audits.Emit(audit.Event{
		CorrelationID: correlationID,
		UserID:        userID.String(),
		Action:        audit.ActionPublishFailed,
		Detail:        cause.Error(),
	})

	if err := s.identities.Delete(ctx, userID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		// Leave it to the sweeper; the identity is disabled and unusable.
		s.logger.Error("compensating delete failed, identity left disabled",
			"user_id", userID, "error", err)
		s.pending.Add(userID, s.now())
		return
	}
	compensations.Inc()
	s.audits.Emit(audit.Event{
		CorrelationID: correlationID,
		UserID:        userID.String(),
		Action:        audit.ActionIdentityDeleted,
		Detail:        "initiation publish failed",
	})
	s.logger.Warn("registration rolled back, publish failed",
		"user_id", userID,
		"correlation_id", correlationID,
		"error", cause)
}

// Status verifies the token and derives the saga state from the identity's
// enablement: absent means the saga failed and was compensated, disabled
// means it is still in flight, enabled means it completed.
func (s *Service) Status(ctx context.Context, token string) (Status, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}

	state, err := s.identities.Enablement(ctx, userID)
	if err != nil {
		return "", err
	}

	switch state {
	case identity.EnablementEnabled:
		return StatusCompleted, nil
	case identity.EnablementDisabled:
		return StatusPending, nil
	default:
		return StatusFailed, nil
	}
}

// FinalizeUserCreation closes the saga once the profile side has reported.
// Success enables the identity; failure deletes it. Both paths treat a
// missing identity as already finalized so redeliveries are no-ops.
func (s *Service) FinalizeUserCreation(ctx context.Context, userID uuid.UUID, correlationID string, success bool) error {
	defer s.pending.Remove(userID)

	if success {
		if err := s.identities.Enable(ctx, userID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				s.logger.Info("finalize skipped, identity already gone", "user_id", userID)
				return nil
			}
			return err
		}
		registrationsCompleted.WithLabelValues("completed").Inc()
		s.audits.Emit(audit.Event{
			CorrelationID: correlationID,
			UserID:        userID.String(),
			Action:        audit.ActionIdentityEnabled,
		})
		s.logger.Info("registration completed", "user_id", userID, "correlation_id", correlationID)
		return nil
	}

	if err := s.identities.Delete(ctx, userID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.Info("finalize skipped, identity already gone", "user_id", userID)
			return nil
		}
		return err
	}
	registrationsCompleted.WithLabelValues("failed").Inc()
	s.audits.Emit(audit.Event{
		CorrelationID: correlationID,
		UserID:        userID.String(),
		Action:        audit.ActionIdentityDeleted,
		Detail:        "profile projection failed",
	})
	s.logger.Warn("registration failed, identity deleted", "user_id", userID, "correlation_id", correlationID)
	return nil
}

// AssignEducatorRole grants the educator realm role. A missing identity is
// logged and dropped: the promotion event outlived its subject.
func (s *Service) AssignEducatorRole(ctx context.Context, userID uuid.UUID) error {
	err := s.identities.AssignRole(ctx, userID, identity.RoleEducator)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.Warn("educator role skipped, identity missing", "user_id", userID)
			return nil
		}
		return err
	}
	s.logger.Info("educator role assigned", "user_id", userID)
	return nil
}
