// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/metrics"
)

const (
	defaultKeyPrefix = "vitalscan:"
	redisOpTimeout   = 2 * time.Second
	redisScanBatch   = 100
)

// RedisConfig points the cache at a Redis server.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func (c RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// RedisCache stores entries under a key prefix so several instances can
// share one database. Redis errors degrade to misses.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	logger zerolog.Logger

	hits, misses, sets atomic.Int64
}

// NewRedisCache dials cfg.Addr and fails unless the server answers a PING.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping redis %s: %w", cfg.Addr, err)
	}

	c := newRedisCache(rdb, cfg.KeyPrefix, logger)
	c.logger.Info().
		Str(xglog.FieldEvent, "cache.redis_connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("prefix", c.prefix).
		Msg("redis cache ready")
	return c, nil
}

func newRedisCache(rdb *redis.Client, prefix string, logger zerolog.Logger) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger}
}

// exec runs op with the per-operation deadline. Errors other than redis.Nil
// are logged and counted.
func (c *RedisCache) exec(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		metrics.RecordCacheError(BackendRedis)
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "cache.redis_error").
			Str("op", op).
			Str("key", key).
			Msg("redis operation failed")
	}
	return err
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := c.exec(ctx, "get", key, func(ctx context.Context) (err error) {
		val, err = c.rdb.Get(ctx, c.prefix+key).Bytes()
		return err
	})
	if err != nil {
		c.misses.Add(1)
		metrics.RecordCacheMiss(BackendRedis)
		return nil, false
	}
	c.hits.Add(1)
	metrics.RecordCacheHit(BackendRedis)
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	err := c.exec(ctx, "set", key, func(ctx context.Context) error {
		return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
	})
	if err == nil {
		c.sets.Add(1)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	_ = c.exec(ctx, "del", key, func(ctx context.Context) error {
		return c.rdb.Del(ctx, c.prefix+key).Err()
	})
}

// Stats scans the prefix for the current size. Expiry is left to Redis, so
// Evictions stays zero.
func (c *RedisCache) Stats() Stats {
	size := 0
	_ = c.exec(context.Background(), "scan", c.prefix+"*", func(ctx context.Context) error {
		it := c.rdb.Scan(ctx, 0, c.prefix+"*", redisScanBatch).Iterator()
		for it.Next(ctx) {
			size++
		}
		return it.Err()
	})
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		CurrentSize: size,
	}
}

func (c *RedisCache) Backend() string { return BackendRedis }

func (c *RedisCache) Close() error { return c.rdb.Close() }

// HealthCheck pings the server.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
