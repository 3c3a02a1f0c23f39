package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"eventedge/pkg/model"
)

// DefaultCacheTTL is how long shared cache entries live
const DefaultCacheTTL = 12 * time.Hour

const redisKeyPrefix = "eventedge:"

// RedisCache shares fetched bars and event dates across processes.
// Redis is best-effort: a failed read or write falls through to the inner
// provider and never fails the call.
type RedisCache struct {
	inner  Provider
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCache wraps inner with a Redis-backed cache. ttl <= 0 uses DefaultCacheTTL.
func NewRedisCache(inner Provider, client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

func (c *RedisCache) Name() string      { return c.inner.Name() }
func (c *RedisCache) IsAvailable() bool { return c.inner.IsAvailable() }
func (c *RedisCache) RateLimit() int    { return c.inner.RateLimit() }

func barsKey(symbol string, from time.Time) string {
	return fmt.Sprintf("%sbars:%s:%s", redisKeyPrefix, symbol, from.Format(model.DateLayout))
}

func anchorsKey(symbol string, kind model.EventKind) string {
	return fmt.Sprintf("%sanchors:%s:%s", redisKeyPrefix, symbol, kind)
}

// GetDailyBars checks Redis before asking the inner provider
func (c *RedisCache) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	key := barsKey(symbol, from)
	var bars []model.PriceBar
	hit, healthy := c.load(ctx, key, &bars)
	if hit {
		return bars, nil
	}

	bars, err := c.inner.GetDailyBars(ctx, symbol, from)
	if err != nil {
		return nil, err
	}
	if healthy {
		c.store(ctx, key, bars)
	}
	return bars, nil
}

// GetAnchors checks Redis before asking the inner provider
func (c *RedisCache) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	key := anchorsKey(symbol, kind)
	var dates []time.Time
	hit, healthy := c.load(ctx, key, &dates)
	if hit {
		return dates, nil
	}

	dates, err := c.inner.GetAnchors(ctx, symbol, kind)
	if err != nil {
		return nil, err
	}
	if healthy {
		c.store(ctx, key, dates)
	}
	return dates, nil
}

// load decodes key into dst. healthy is false when Redis itself failed,
// in which case the caller skips the write back.
func (c *RedisCache) load(ctx context.Context, key string, dst interface{}) (hit, healthy bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, true
	case err != nil:
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false, false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping corrupt cache entry")
		return false, true
	}
	c.logger.Debug().Str("key", key).Msg("cache hit")
	return true, true
}

func (c *RedisCache) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
