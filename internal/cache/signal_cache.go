package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/models"
)

const signalKeyPrefix = "hivewatch:signal:"

// SignalCache is an optional Redis-backed cache for computed signals on
// the read path. The classifier itself stays pure; this layer sits
// outside it and is invalidated whenever a snapshot is recorded. Cache
// errors are swallowed: a miss costs one recompute.
type SignalCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSignalCache creates a cache with the given TTL. A nil client or
// non-positive TTL yields a nil cache, which callers treat as disabled.
func NewSignalCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SignalCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &SignalCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached signal for a product, or nil on miss.
func (c *SignalCache) Get(ctx context.Context, productID string) *models.ProductSignal {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, signalKeyPrefix+productID).Bytes()
	if err != nil {
		return nil
	}

	var ps models.ProductSignal
	if err := json.Unmarshal(data, &ps); err != nil {
		c.logger.Warn("failed to decode cached signal", zap.Error(err))
		return nil
	}
	return &ps
}

// Set stores a computed signal.
func (c *SignalCache) Set(ctx context.Context, ps *models.ProductSignal) {
	if c == nil || ps == nil || ps.Product == nil {
		return
	}

	data, err := json.Marshal(ps)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, signalKeyPrefix+ps.Product.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache signal", zap.Error(err))
	}
}

// Invalidate drops a product's cached signal.
func (c *SignalCache) Invalidate(ctx context.Context, productID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, signalKeyPrefix+productID).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached signal", zap.Error(err))
	}
}
