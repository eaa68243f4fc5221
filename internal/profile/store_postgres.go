package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "mentora/pkg/domain-errors"
)

// Schema creates the projection table. Applied by deploy tooling and by the
// integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
    id         UUID PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name  TEXT NOT NULL,
    birth_date DATE NOT NULL,
    educator   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore persists profiles in Postgres via pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, p UserProfile) (InsertOutcome, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (id, first_name, last_name, birth_date, educator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Educator, p.CreatedAt)
	if err != nil {
		return InsertAlreadyExists, dErrors.Wrap(err, dErrors.CodeUnavailable, "insert profile")
	}
	if tag.RowsAffected() == 0 {
		return InsertAlreadyExists, nil
	}
	return InsertCreated, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	var p UserProfile
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, birth_date, educator, created_at
		FROM user_profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Educator, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find profile")
	}
	return &p, nil
}

func (s *PostgresStore) SetEducator(ctx context.Context, id uuid.UUID, educator bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_profiles SET educator = $2
		WHERE id = $1 AND educator <> $2`, id, educator)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "update educator flag")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an already-set flag.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "check profile existence")
		}
		if !exists {
			return false, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return false, nil
	}
	return true, nil
}
