package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"family-registry-backend/pkg/cache"
	"family-registry-backend/pkg/logger"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(host, password string, db int) *RedisClient {
	return &RedisClient{
		Client: redis.NewClient(&redis.Options{
			Addr:         host,
			Password:     password,
			DB:           db,
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}
}

func (r *RedisClient) Connect(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("[REDIS] connected", map[string]interface{}{"addr": r.Client.Options().Addr})
	return nil
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// ========================================
// REDIS CACHE (pkg/cache.Cache)
// ========================================

// RedisCache lưu value dạng JSON dưới prefix chung của app.
type RedisCache struct {
	client *RedisClient
	prefix string
}

var _ cache.Cache = (*RedisCache)(nil)

func NewRedisCache(client *RedisClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: get %s: %v", cache.ErrUnavailable, key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// entry hỏng -> xóa và coi như miss
		_ = c.client.Client.Del(ctx, c.key(key)).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	if err := c.client.Client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", cache.ErrUnavailable, key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// DeletePattern duyệt bằng SCAN theo batch để không block Redis như KEYS.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Client.Scan(ctx, 0, c.key(pattern), 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Client.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("%w: unlink: %v", cache.ErrUnavailable, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan %s: %v", cache.ErrUnavailable, pattern, err)
	}
	if len(batch) > 0 {
		if err := c.client.Client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("%w: unlink: %v", cache.ErrUnavailable, err)
		}
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.HealthCheck(ctx)
}
