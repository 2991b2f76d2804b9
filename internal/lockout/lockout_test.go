package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardLocksAfterThreshold(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(NewInMemoryStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := guard.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
		require.NoError(t, guard.RecordFailure(ctx, "alice"))
	}

	allowed, err := guard.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	t.Run("other identifiers unaffected", func(t *testing.T) {
		allowed, err := guard.Allow(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reset unlocks", func(t *testing.T) {
		require.NoError(t, guard.Reset(ctx, "alice"))
		allowed, err := guard.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestInMemoryStoreWindowExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	_, err := store.Increment(ctx, "alice", time.Minute)
	require.NoError(t, err)
	count, err := store.Count(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	current = current.Add(2 * time.Minute)
	count, err = store.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	// A failure after expiry starts a fresh window.
	total, err := store.Increment(ctx, "alice", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
