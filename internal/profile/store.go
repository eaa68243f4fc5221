package profile

import (
	"context"

	"github.com/google/uuid"
)

// InsertOutcome distinguishes a fresh insert from a redelivered one.
type InsertOutcome int

const (
	InsertCreated InsertOutcome = iota
	InsertAlreadyExists
)

// Store persists profile projections. InsertIfAbsent is the idempotency
// anchor for the projector: replays of the same registration event must not
// create duplicate rows or overwrite an existing one.
type Store interface {
	InsertIfAbsent(ctx context.Context, p UserProfile) (InsertOutcome, error)
	FindByID(ctx context.Context, id uuid.UUID) (*UserProfile, error)
	SetEducator(ctx context.Context, id uuid.UUID, educator bool) (changed bool, err error)
}
