package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 100

// Redis is a Cache backed by a redis server.
type Redis struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

// NewRedis connects to addr and verifies it with a ping.
func NewRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedisWithClient(rdb, logger), nil
}

func NewRedisWithClient(rdb redis.UniversalClient, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, logger: logger.Named("cache")}
}

func (c *Redis) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Redis) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache del failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// DelPattern walks the keyspace with SCAN rather than KEYS so large
// keyspaces do not block the server.
func (c *Redis) DelPattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			c.logger.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
			return
		}
		c.Del(ctx, keys...)
		if next == 0 {
			return
		}
		cursor = next
	}
}

func (c *Redis) Close() error { return c.rdb.Close() }
