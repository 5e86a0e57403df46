package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*IdempotencyCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	return NewIdempotencyCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()})), s
}

func TestIdempotencyCache_RememberAndLookup(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()
	key := "guest:awa@example.cm:penal_code:k1"
	txID := uuid.New()

	_, found, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	set, err := cache.Remember(ctx, key, txID, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, set)

	got, found, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, txID, got)
	assert.True(t, s.Exists(purchaseKeyPrefix+key))
}

func TestIdempotencyCache_FirstWriterWins(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key := "account:uid-9:penal_code:k3"
	first, second := uuid.New(), uuid.New()

	set, err := cache.Remember(ctx, key, first, time.Hour)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = cache.Remember(ctx, key, second, time.Hour)
	require.NoError(t, err)
	assert.False(t, set)

	got, _, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestIdempotencyCache_Expiry(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()
	key := "account:uid-7:labour_code:k2"

	_, err := cache.Remember(ctx, key, uuid.New(), time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	_, found, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyCache_GarbageIsAMiss(t *testing.T) {
	cache, s := newTestCache(t)
	require.NoError(t, s.Set(purchaseKeyPrefix+"k", "not-a-uuid"))

	_, found, err := cache.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyCache_Unavailable(t *testing.T) {
	cache, s := newTestCache(t)
	s.Close()

	_, _, err := cache.Lookup(context.Background(), "k")
	assert.ErrorContains(t, err, "redis purchase key lookup")
}
