package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

// New creates a cache based on the configuration.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache checks a local LRU first, then Redis. Writes go to both.
// Remote hits are promoted into the local cache.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache over a local and remote layer.
func NewTwoPhaseCache(local *LRUCache, remote *RedisCache, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL <= 0 {
		l1TTL = 5 * time.Minute
	}
	return &TwoPhaseCache{
		local:  local,
		remote: remote,
		l1TTL:  l1TTL,
	}
}

// Get checks the local cache first, then Redis. A Redis hit populates the
// local cache.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, key)
	if err == nil && val != nil {
		return val, nil
	}

	val, err = c.remote.Get(ctx, key)
	if err != nil || val == nil {
		return nil, err
	}

	_ = c.local.Set(ctx, key, val, c.l1TTL)
	return val, nil
}

// Set writes to both layers. The local TTL is capped at the entry TTL.
func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := c.l1TTL
	if ttl < localTTL {
		localTTL = ttl
	}
	_ = c.local.Set(ctx, key, value, localTTL)
	return c.remote.Set(ctx, key, value, ttl)
}

// Delete removes the key from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	_ = c.local.Delete(ctx, key)
	return c.remote.Delete(ctx, key)
}

// GetPricing retrieves a cached pricing result.
func (c *TwoPhaseCache) GetPricing(ctx context.Context, serviceID, areaID int64) (*domain.PricingResult, error) {
	return getPricing(ctx, c, serviceID, areaID)
}

// SetPricing caches a pricing result.
func (c *TwoPhaseCache) SetPricing(ctx context.Context, serviceID, areaID int64, result *domain.PricingResult, ttl time.Duration) error {
	return setPricing(ctx, c, serviceID, areaID, result, ttl)
}

// Ping checks the remote layer.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	return c.remote.Ping(ctx)
}

// Close closes both layers.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}
