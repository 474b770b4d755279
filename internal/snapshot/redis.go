// Package snapshot publishes market snapshots to external sinks.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketfeed/internal/aggregate"
)

const (
	DefaultKey     = "market:snapshot"
	DefaultChannel = "market.snapshot"
)

// RedisPublisher stores the latest snapshot under Key and announces it on
// Channel. It is a mirror only; nothing reads history back from Redis.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	Key     string
	Channel string
	TTL     time.Duration
}

func NewRedisPublisher(rdb redis.UniversalClient, key, channel string, ttl time.Duration) *RedisPublisher {
	if key == "" {
		key = DefaultKey
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, Key: key, Channel: channel, TTL: ttl}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, snap aggregate.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, p.Key, payload, p.TTL)
	pipe.Publish(ctx, p.Channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Ping checks connectivity; used at startup so a bad address is logged early.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
