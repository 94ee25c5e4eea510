package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

const versionKey = "avail:ver"

// RedisCache stores computed slot lists keyed by date, namespaced by a
// version counter. Per-date invalidation deletes one key; schedule-wide
// invalidation bumps the version, which orphans every existing entry at
// once (they expire by TTL). Cache failures are logged and treated as
// misses; availability must keep working with Redis down.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (c *RedisCache) GetSlots(ctx context.Context, date time.Time) ([]booking.Slot, bool) {
	key, err := c.slotKey(ctx, date)
	if err != nil {
		c.log.Warn().Err(err).Msg("availability cache read skipped")
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("availability cache read failed")
		}
		return nil, false
	}

	var slots []booking.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("availability cache entry corrupt, dropping")
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) SetSlots(ctx context.Context, date time.Time, slots []booking.Slot) {
	key, err := c.slotKey(ctx, date)
	if err != nil {
		return
	}

	data, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn().Err(err).Msg("availability cache encode failed")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("availability cache write failed")
	}
}

func (c *RedisCache) InvalidateDate(ctx context.Context, date time.Time) {
	key, err := c.slotKey(ctx, date)
	if err != nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("availability cache invalidation failed")
	}
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("availability cache version bump failed")
	}
}

func (c *RedisCache) slotKey(ctx context.Context, date time.Time) (string, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("read cache version: %w", err)
	}
	return fmt.Sprintf("avail:v%d:slots:%s", ver, date.Format("2006-01-02")), nil
}
