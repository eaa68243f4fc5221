// Package profile owns the user profile projection built from registration
// events, and the educator promotion flow layered on top of it.
package profile

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the projection row keyed by the identity provider's user id.
type UserProfile struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	BirthDate time.Time
	Educator  bool
	CreatedAt time.Time
}
