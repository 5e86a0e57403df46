package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventMarker implements ports.EventMarker using Redis SET NX.
type EventMarker struct {
	client goredis.UniversalClient
	prefix string
}

// NewEventMarker creates a Redis-backed marker for provider event ids.
func NewEventMarker(client goredis.UniversalClient) *EventMarker {
	return &EventMarker{
		client: client,
		prefix: "gw-event:",
	}
}

// MarkSeen atomically records eventID.
// Returns true if the id is new, false if it was already recorded.
func (m *EventMarker) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := m.client.SetArgs(ctx, m.prefix+eventID, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event mark: %w", err)
	}
	return result == "OK", nil
}
