package credentials

import (
	"context"
	"errors"
	"fmt"

	"portfolio-sync-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss signals that no entry exists under the requested key.
var ErrCacheMiss = errors.New("token cache miss")

// TokenCache is the read-only view of the external credential cache. The
// interactive token bootstrap flow populates it out-of-band with a bounded
// TTL; this service only ever reads.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
}

// Compile-time check: *RedisTokenCache must satisfy TokenCache.
var _ TokenCache = (*RedisTokenCache)(nil)

// RedisTokenCache reads token entries from Redis, where the bootstrap flow
// stores them as JSON strings.
type RedisTokenCache struct {
	rdb *redis.Client
}

func NewRedisTokenCache(cfg models.RedisConfig) *RedisTokenCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisTokenCache{rdb: rdb}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("key %s: %w", key, ErrCacheMiss)
		}
		return "", fmt.Errorf("unable to read token cache key %s: %w", key, err)
	}
	return value, nil
}

func (c *RedisTokenCache) Close() {
	if err := c.rdb.Close(); err != nil {
		zap.L().Warn("Failed to close redis connection", zap.Error(err))
	}
}
