// internal/chat/citations/cache.go
package citations

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"answer-gateway/internal/common/logger"
)

const cacheKeyPrefix = "citation:name:"

// RedisLookupCache is a read-through cache of file names shared by every
// gateway instance. File names are immutable, so entries only expire by TTL.
type RedisLookupCache struct {
	next   Lookup
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisLookupCache(next Lookup, client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLookupCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisLookupCache{next: next, redis: client, ttl: ttl, logger: log}
}

// LookupFilename serves from Redis when possible. Redis failures fall through
// to the wrapped lookup.
func (c *RedisLookupCache) LookupFilename(ctx context.Context, sourceID string) (string, error) {
	key := cacheKeyPrefix + sourceID

	name, err := c.redis.Get(ctx, key).Result()
	if err == nil && name != "" {
		return name, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("citation cache read failed", map[string]interface{}{
			"sourceId": sourceID,
			"error":    err.Error(),
		})
	}

	name, err = c.next.LookupFilename(ctx, sourceID)
	if err != nil {
		return "", err
	}

	if err := c.redis.Set(ctx, key, name, c.ttl).Err(); err != nil {
		c.logger.Warn("citation cache write failed", map[string]interface{}{
			"sourceId": sourceID,
			"error":    err.Error(),
		})
	}
	return name, nil
}
