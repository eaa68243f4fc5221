// Package identity defines the capability surface the registration saga
// needs from the external identity provider. The saga never sees more of an
// identity's lifecycle than disabled, enabled, or absent; that collapsed
// state is what the status endpoint derives registration progress from.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Enablement is the externally visible lifecycle state of an identity.
type Enablement int

const (
	EnablementAbsent Enablement = iota
	EnablementDisabled
	EnablementEnabled
)

func (e Enablement) String() string {
	switch e {
	case EnablementDisabled:
		return "disabled"
	case EnablementEnabled:
		return "enabled"
	default:
		return "absent"
	}
}

// Realm roles the saga assigns.
const (
	RoleUser     = "user"
	RoleEducator = "educator"
)

// Provider is the identity-provider client consumed by the orchestrator.
// Implementations return domain-errors codes: CodeConflict when the username
// or email is taken, CodeNotFound when the identity does not exist.
type Provider interface {
	// CreateDisabled registers a new identity in the disabled state and
	// returns its provider-assigned id.
	CreateDisabled(ctx context.Context, username, email, password string) (uuid.UUID, error)

	// Enable flips the identity to enabled.
	Enable(ctx context.Context, id uuid.UUID) error

	// Delete removes the identity.
	Delete(ctx context.Context, id uuid.UUID) error

	// Enablement reports the identity's current lifecycle state. An unknown
	// id yields EnablementAbsent with a nil error.
	Enablement(ctx context.Context, id uuid.UUID) (Enablement, error)

	// AssignRole grants a realm role to the identity.
	AssignRole(ctx context.Context, id uuid.UUID, role string) error
}
