package qr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the live token per session in Redis with a TTL matching
// the token's expiry, so instructor re-display polls skip Postgres.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(sessionID string) string {
	return "qr:session:" + sessionID
}

// Put stores the token until it expires.
func (c *RedisCache) Put(ctx context.Context, t Token) error {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(t.SessionID), payload, ttl).Err()
}

// Get returns the cached live token, nil on miss.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (*Token, error) {
	payload, err := c.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var t Token
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
