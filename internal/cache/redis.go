package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/silaiwala/darzi/internal/domain"
)

// RedisCache implements Cache using Redis.
// Used as the production cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis. Returns nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, makeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, makeKey(key), value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, makeKey(key)).Err()
}

// GetPricing retrieves a cached pricing result.
func (c *RedisCache) GetPricing(ctx context.Context, serviceID, areaID int64) (*domain.PricingResult, error) {
	return getPricing(ctx, c, serviceID, areaID)
}

// SetPricing caches a pricing result.
func (c *RedisCache) SetPricing(ctx context.Context, serviceID, areaID int64, result *domain.PricingResult, ttl time.Duration) error {
	return setPricing(ctx, c, serviceID, areaID, result, ttl)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func makeKey(key string) string {
	return "darzi:" + key
}

// byteCache is the raw Get/Set surface shared by all implementations, used
// by the typed pricing helpers.
type byteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func pricingKey(serviceID, areaID int64) string {
	return fmt.Sprintf("pricing:%d:%d", serviceID, areaID)
}

func getPricing(ctx context.Context, c byteCache, serviceID, areaID int64) (*domain.PricingResult, error) {
	data, err := c.Get(ctx, pricingKey(serviceID, areaID))
	if err != nil || data == nil {
		return nil, err
	}

	var result domain.PricingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func setPricing(ctx context.Context, c byteCache, serviceID, areaID int64, result *domain.PricingResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.Set(ctx, pricingKey(serviceID, areaID), data, ttl)
}
