package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lexpay/internal/core/ports"

	"github.com/google/uuid"
)

type entry struct {
	id      uuid.UUID
	count   int64
	expires time.Time
}

// Cache is a TTL key-value map standing in for Redis. It implements
// ports.IdempotencyCache, ports.EventMarker and ports.RateLimiter.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

// sweepInterval bounds how often Allow scans for expired entries.
const sweepInterval = time.Minute

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

func (c *Cache) live(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

// sweep drops every expired entry. Rate limit windows are keyed by window
// number and never read again once the window passes.
func (c *Cache) sweep() {
	now := c.now()
	if now.Sub(c.lastSweep) < sweepInterval {
		return
	}
	c.lastSweep = now
	for k, e := range c.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// Lookup returns the transaction remembered for key.
func (c *Cache) Lookup(_ context.Context, key string) (uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live("idem:" + key)
	if !ok {
		return uuid.Nil, false, nil
	}
	return e.id, true, nil
}

// Remember stores transactionID under key unless it is already taken.
func (c *Cache) Remember(_ context.Context, key string, transactionID uuid.UUID, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live("idem:" + key); ok {
		return false, nil
	}
	c.entries["idem:"+key] = entry{id: transactionID, expires: c.expiry(ttl)}
	return true, nil
}

// MarkSeen records eventID and reports whether it was new.
func (c *Cache) MarkSeen(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := "event:" + eventID
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.entries[key] = entry{expires: c.expiry(ttl)}
	return true, nil
}

// Allow counts a request against key in fixed windows.
func (c *Cache) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()

	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	windowID := c.now().Unix() / windowSecs
	k := fmt.Sprintf("rl:%s:%d", key, windowID)

	e, _ := c.live(k)
	e.count++
	e.expires = c.expiry(window + time.Second)
	c.entries[k] = e

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   e.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * windowSecs,
	}, nil
}
