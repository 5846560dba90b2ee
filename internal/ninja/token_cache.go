package ninja

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores the OAuth access token between polls so every tick does
// not re-authenticate.
type TokenCache interface {
	Get(ctx context.Context) (string, error)
	Put(ctx context.Context, token string, expiresInSeconds int) error
	Invalidate(ctx context.Context)
}

const tokenKey = "ninja:access_token"

// redisTokenCache keeps the token in Redis with a TTL slightly below the
// token lifetime.
type redisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache builds a Redis-backed token cache.
func NewRedisTokenCache(client *redis.Client) TokenCache {
	return &redisTokenCache{client: client}
}

func (c *redisTokenCache) Get(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, tokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (c *redisTokenCache) Put(ctx context.Context, token string, expiresInSeconds int) error {
	ttl := time.Duration(expiresInSeconds) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.client.Set(ctx, tokenKey, token, ttl).Err()
}

func (c *redisTokenCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, tokenKey).Err()
}
