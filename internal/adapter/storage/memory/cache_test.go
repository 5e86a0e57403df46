package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_IdempotencyTTL(t *testing.T) {
	c := NewCache()
	now := time.Unix(1_800_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	txID := uuid.New()

	set, err := c.Remember(ctx, "k", txID, time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = c.Remember(ctx, "k", uuid.New(), time.Minute)
	require.NoError(t, err)
	assert.False(t, set, "key already taken")

	got, found, err := c.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, txID, got)

	now = now.Add(2 * time.Minute)
	_, found, err = c.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_MarkSeen(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	ok, err := c.MarkSeen(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.MarkSeen(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// Namespaces do not collide with idempotency keys.
	_, found, err := c.Lookup(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_Allow(t *testing.T) {
	c := NewCache()
	now := time.Unix(1_800_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.Allow(ctx, "ip:purchases", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := c.Allow(ctx, "ip:purchases", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)

	now = now.Add(time.Minute)
	res, err = c.Allow(ctx, "ip:purchases", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCache_AllowDropsPastWindows(t *testing.T) {
	c := NewCache()
	now := time.Unix(1_800_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 50 {
		_, err := c.Allow(ctx, fmt.Sprintf("purchase:buyer-%d", i), 5, time.Minute)
		require.NoError(t, err)
	}
	_, err := c.MarkSeen(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.Len(t, c.entries, 51)

	now = now.Add(3 * time.Minute)
	res, err := c.Allow(ctx, "purchase:buyer-0", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(4), res.Remaining)

	// Only the new window and the unexpired event marker survive.
	assert.Len(t, c.entries, 2)
	_, ok := c.entries["event:evt_1"]
	assert.True(t, ok)
}
