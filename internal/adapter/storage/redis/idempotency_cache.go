package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const purchaseKeyPrefix = "lexpay:purchase-key:"

// IdempotencyCache keeps purchase key -> transaction id pairs in Redis.
type IdempotencyCache struct {
	client goredis.UniversalClient
}

func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Lookup returns the remembered transaction id. A value that does not parse
// is treated as a miss so the database lookup decides.
func (c *IdempotencyCache) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	raw, err := c.client.Get(ctx, purchaseKeyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis purchase key lookup: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Remember uses SET NX so the first transaction recorded for a key wins.
func (c *IdempotencyCache) Remember(ctx context.Context, key string, transactionID uuid.UUID, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, purchaseKeyPrefix+key, transactionID.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis purchase key remember: %w", err)
	}
	return ok, nil
}
