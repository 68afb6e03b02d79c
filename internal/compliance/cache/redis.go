// Package cache keeps recent compliance decisions in Redis so ledger
// operations avoid an allowlist lookup per call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tessera/pkg/domain"
)

const keyPrefix = "compliance:party:"

// RedisCache stores decisions as "1" or "0" with a TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(party domain.PartyID) string {
	return keyPrefix + party.String()
}

// Get returns the cached decision. found is false on a miss.
func (c *RedisCache) Get(ctx context.Context, party domain.PartyID) (approved, found bool, err error) {
	val, err := c.client.Get(ctx, key(party)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis get compliance decision: %w", err)
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, party domain.PartyID, approved bool) error {
	val := "0"
	if approved {
		val = "1"
	}
	if err := c.client.Set(ctx, key(party), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set compliance decision: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, party domain.PartyID) error {
	if err := c.client.Del(ctx, key(party)).Err(); err != nil {
		return fmt.Errorf("redis delete compliance decision: %w", err)
	}
	return nil
}
