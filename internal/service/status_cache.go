package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotpix/slot-reservation/internal/model"
)

// StatusCache caches terminal payment statuses in Redis so the
// storefront's polling loop (one request every few seconds per waiting
// customer) stops hitting MySQL and the provider once a charge has
// settled.  Only PAID is cached — pending is a moving target.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusCache wraps a Redis client.  Returns nil when the client is
// nil so callers can pass the result straight through; the service
// treats a nil cache as disabled.
func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func (c *StatusCache) key(ref string) string { return "payment:status:" + ref }

// Get returns a cached status for the reference.  Cache errors are
// treated as misses; Redis being down degrades to DB reads.
func (c *StatusCache) Get(ctx context.Context, ref string) (string, bool) {
	v, err := c.rdb.Get(ctx, c.key(ref)).Result()
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// SetPaid records the terminal status for the reference.  Errors are
// ignored; the cache is an optimization, not a source of truth.
func (c *StatusCache) SetPaid(ctx context.Context, ref string) {
	_ = c.rdb.Set(ctx, c.key(ref), model.StatusPaid, c.ttl).Err()
}
