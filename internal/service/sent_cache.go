package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/model"
)

const sentCachePrefix = "delivery:sent:"

// SentCache caches sent delivery lookups in Redis. Sent rows are immutable,
// so a cached copy never goes stale within its TTL.
type SentCache struct {
	rdb *database.Redis
	ttl time.Duration
}

// NewSentCache creates a new SentCache
func NewSentCache(rdb *database.Redis, ttl time.Duration) *SentCache {
	return &SentCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached delivery, if present
func (c *SentCache) Get(ctx context.Context, id string) (*model.DeliveryRequest, bool) {
	raw, err := c.rdb.GetString(ctx, sentCachePrefix+id)
	if err != nil {
		return nil, false
	}

	var d model.DeliveryRequest
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, false
	}
	return &d, true
}

// Store caches a sent delivery
func (c *SentCache) Store(ctx context.Context, d *model.DeliveryRequest) error {
	if d.Status != model.DeliveryStatusSent {
		return errors.New("only sent deliveries are cacheable")
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.SetWithTTL(ctx, sentCachePrefix+d.ID, raw, c.ttl)
}

// Healthy reports whether the cache backend is reachable
func (c *SentCache) Healthy(ctx context.Context) bool {
	return c.rdb.HealthCheck(ctx) == nil
}
