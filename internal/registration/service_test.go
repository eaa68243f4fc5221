package registration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mentora/internal/audit"
	"mentora/internal/identity"
	"mentora/internal/identity/memory"
	"mentora/internal/messaging"
	dErrors "mentora/pkg/domain-errors"
)

type capturedPublish struct {
	routingKey string
	event      messaging.Event
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, event messaging.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, capturedPublish{routingKey: routingKey, event: event})
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	identities *memory.Provider
	publisher  *fakePublisher
	pending    *PendingLedger
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.identities = memory.New()
	s.publisher = &fakePublisher{}
	s.pending = NewPendingLedger()
	logger := slog.New(slog.DiscardHandler)
	tokens := NewTokenService("test-signing-key", 10*time.Minute)
	s.service = NewService(s.identities, s.publisher, tokens, s.pending, audit.NewPublisher(logger), logger)
}

func (s *ServiceSuite) register() *RegisterResult {
	result, err := s.service.Register(s.ctx, RegisterRequest{
		Username:  "ada",
		Email:     "ada@example.com",
		Password:  "s3cret-pass",
		FirstName: "Ada",
		LastName:  "Lovelace",
		BirthDate: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	return result
}

func (s *ServiceSuite) TestRegisterPublishesAndMintsToken() {
	result := s.register()

	state, err := s.identities.Enablement(s.ctx, result.UserID)
	s.Require().NoError(err)
	s.Equal(identity.EnablementDisabled, state, "new identity starts disabled")

	s.Require().Len(s.publisher.published, 1)
	s.Equal(messaging.RegistrationInitiatedKey, s.publisher.published[0].routingKey)
	initiated, ok := s.publisher.published[0].event.(messaging.RegistrationInitiatedEvent)
	s.Require().True(ok)
	s.Equal(result.UserID.String(), initiated.UserID)
	s.Equal("1815-12-10", initiated.BirthDate)
	s.NotEmpty(initiated.CorrelationID)

	s.NotEmpty(result.StatusToken)

	status, err := s.service.Status(s.ctx, result.StatusToken)
	s.Require().NoError(err)
	s.Equal(StatusPending, status)
}

func (s *ServiceSuite) TestRegisterConflictPublishesNothing() {
	s.register()

	_, err := s.service.Register(s.ctx, RegisterRequest{
		Username:  "other",
		Email:     "ada@example.com",
		Password:  "s3cret-pass",
		FirstName: "Other",
		LastName:  "Person",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Len(s.publisher.published, 1, "conflicting registration must not publish")
}

func (s *ServiceSuite) TestRegisterCompensatesWhenPublishFails() {
	s.publisher.err = dErrors.New(dErrors.CodeUnavailable, "broker down")

	_, err := s.service.Register(s.ctx, RegisterRequest{
		Username:  "ada",
		Email:     "ada@example.com",
		Password:  "s3cret-pass",
		FirstName: "Ada",
		LastName:  "Lovelace",
		BirthDate: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The identity must be rolled back, freeing the username for a retry.
	s.publisher.err = nil
	s.register()
}

func (s *ServiceSuite) TestFinalizeSuccessEnablesIdentity() {
	result := s.register()

	s.Require().NoError(s.service.FinalizeUserCreation(s.ctx, result.UserID, "corr-1", true))

	status, err := s.service.Status(s.ctx, result.StatusToken)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, status)

	s.Run("redelivered finalize is a no-op", func() {
		s.Require().NoError(s.service.FinalizeUserCreation(s.ctx, result.UserID, "corr-1", true))
	})
}

func (s *ServiceSuite) TestFinalizeFailureDeletesIdentity() {
	result := s.register()

	s.Require().NoError(s.service.FinalizeUserCreation(s.ctx, result.UserID, "corr-1", false))

	status, err := s.service.Status(s.ctx, result.StatusToken)
	s.Require().NoError(err)
	s.Equal(StatusFailed, status)

	s.Run("redelivered finalize is a no-op", func() {
		s.Require().NoError(s.service.FinalizeUserCreation(s.ctx, result.UserID, "corr-1", false))
	})
}

func (s *ServiceSuite) TestStatusRejectsBadToken() {
	_, err := s.service.Status(s.ctx, "not-a-token")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestAssignEducatorRole() {
	result := s.register()

	s.Require().NoError(s.service.AssignEducatorRole(s.ctx, result.UserID))
	s.True(s.identities.HasRole(result.UserID, identity.RoleEducator))

	s.Run("missing identity is dropped", func() {
		s.NoError(s.service.AssignEducatorRole(s.ctx, uuid.New()))
	})
}
