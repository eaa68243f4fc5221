package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mentora/internal/identity"
	dErrors "mentora/pkg/domain-errors"
)

type ProviderSuite struct {
	suite.Suite
	ctx      context.Context
	provider *Provider
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = New()
}

func (s *ProviderSuite) TestLifecycle() {
	id, err := s.provider.CreateDisabled(s.ctx, "alice", "alice@example.com", "s3cret-pass")
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, id)

	state, err := s.provider.Enablement(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(identity.EnablementDisabled, state)

	s.Require().NoError(s.provider.Enable(s.ctx, id))

	state, err = s.provider.Enablement(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(identity.EnablementEnabled, state)

	s.Require().NoError(s.provider.Delete(s.ctx, id))

	state, err = s.provider.Enablement(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(identity.EnablementAbsent, state)
}

func (s *ProviderSuite) TestCreateConflicts() {
	_, err := s.provider.CreateDisabled(s.ctx, "alice", "alice@example.com", "s3cret-pass")
	s.Require().NoError(err)

	s.Run("duplicate email", func() {
		_, err := s.provider.CreateDisabled(s.ctx, "bob", "Alice@Example.com", "other-pass")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("duplicate username", func() {
		_, err := s.provider.CreateDisabled(s.ctx, "ALICE", "bob@example.com", "other-pass")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ProviderSuite) TestUnknownIdentity() {
	id := uuid.New()

	s.True(dErrors.HasCode(s.provider.Enable(s.ctx, id), dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.provider.Delete(s.ctx, id), dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.provider.AssignRole(s.ctx, id, identity.RoleUser), dErrors.CodeNotFound))

	state, err := s.provider.Enablement(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(identity.EnablementAbsent, state)
}

func (s *ProviderSuite) TestRolesAndPassword() {
	id, err := s.provider.CreateDisabled(s.ctx, "carol", "carol@example.com", "s3cret-pass")
	s.Require().NoError(err)

	s.False(s.provider.HasRole(id, identity.RoleEducator))
	s.Require().NoError(s.provider.AssignRole(s.ctx, id, identity.RoleEducator))
	s.True(s.provider.HasRole(id, identity.RoleEducator))

	s.NoError(s.provider.VerifyPassword(s.ctx, id, "s3cret-pass"))
	s.True(dErrors.HasCode(s.provider.VerifyPassword(s.ctx, id, "wrong"), dErrors.CodeUnauthorized))
}
