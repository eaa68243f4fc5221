package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarksFirstSightingOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	first, err := store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	first, err = store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, first)

	first, err = store.MarkIfFirst(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, first)
}

func TestMemoryStoreUnmarkReleasesMarker(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	first, err := store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, store.Unmark(ctx, "evt-1"))

	first, err = store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)
}

func TestMemoryStoreExpiresMarkers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	first, err := store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	current = current.Add(2 * time.Minute)

	first, err = store.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first, "expired marker should read as first sighting")

	// The prune pass runs on the same clock and drops dead entries.
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.seen, 1)
}
