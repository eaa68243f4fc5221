//go:build integration

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	dErrors "mentora/pkg/domain-errors"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mentora_test"),
		tcpostgres.WithUsername("mentora"),
		tcpostgres.WithPassword("mentora"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, Schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return NewPostgresStore(pool)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	p := UserProfile{
		ID:        uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		BirthDate: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	}

	outcome, err := store.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	require.Equal(t, InsertCreated, outcome)

	replay := p
	replay.FirstName = "Changed"
	outcome, err = store.InsertIfAbsent(ctx, replay)
	require.NoError(t, err)
	require.Equal(t, InsertAlreadyExists, outcome)

	got, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", got.FirstName)
	require.Equal(t, p.BirthDate.Format("2006-01-02"), got.BirthDate.Format("2006-01-02"))
	require.False(t, got.Educator)

	changed, err := store.SetEducator(ctx, p.ID, true)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = store.SetEducator(ctx, p.ID, true)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = store.SetEducator(ctx, uuid.New(), true)
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestPostgresStoreFindMissing(t *testing.T) {
	store := newPostgresStore(t)
	_, err := store.FindByID(context.Background(), uuid.New())
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
