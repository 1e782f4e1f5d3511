package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching computed prices and customer
// profiles. Backed by a local LRU, Redis, or both (two-phase).
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetPricing retrieves a cached pricing result.
	GetPricing(ctx context.Context, serviceID, areaID int64) (*PricingResult, error)

	// SetPricing caches a pricing result.
	SetPricing(ctx context.Context, serviceID, areaID int64, result *PricingResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
