package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarker_MarkSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	marker := NewEventMarker(client)
	ctx := context.Background()

	ok, err := marker.MarkSeen(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "first delivery should be new")

	ok, err = marker.MarkSeen(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "redelivery should be reported as seen")

	ok, err = marker.MarkSeen(ctx, "evt_456", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEventMarker_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	marker := NewEventMarker(client)
	ctx := context.Background()

	_, err := marker.MarkSeen(ctx, "evt_exp", time.Minute)
	require.NoError(t, err)

	s.FastForward(2 * time.Minute)

	ok, err := marker.MarkSeen(ctx, "evt_exp", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired marker should allow the id again")
}

func TestEventMarker_RedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	marker := NewEventMarker(client)
	s.Close()

	_, err := marker.MarkSeen(context.Background(), "evt_x", time.Minute)
	assert.Error(t, err)
}
