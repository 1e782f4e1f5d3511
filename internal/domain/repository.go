package domain

import (
	"context"
	"time"
)

// Repository defines the persistence interface for the pricing engine.
type Repository interface {
	// Catalog
	SaveService(ctx context.Context, svc *Service) error
	GetService(ctx context.Context, serviceID int64) (*Service, error)
	SaveArea(ctx context.Context, area *PricingArea) error
	GetArea(ctx context.Context, areaID int64) (*PricingArea, error)
	ListActiveAreas(ctx context.Context) ([]*PricingArea, error)
	SaveBasePrice(ctx context.Context, sp *ServicePricing) error
	// GetBasePrice returns ErrNoBasePricing when no price exists for the pair.
	GetBasePrice(ctx context.Context, serviceID, areaID int64) (float64, error)

	// Customer pricing profiles
	SaveCustomerProfile(ctx context.Context, profile *CustomerProfile) error
	GetCustomerProfile(ctx context.Context, customerID int64) (*CustomerProfile, error)

	// Pricing rules
	SaveRule(ctx context.Context, rule *PricingRule) error
	GetRule(ctx context.Context, ruleID string) (*PricingRule, error)
	// ListActiveRules returns active rules ordered by priority descending,
	// name ascending on ties.
	ListActiveRules(ctx context.Context) ([]*PricingRule, error)

	// Historical pricing records
	SavePricingRecord(ctx context.Context, rec *PricingRecord) error
	ListPricingRecords(ctx context.Context, filter RecordFilter) ([]*PricingRecord, error)
	CountPricingRecords(ctx context.Context, serviceID, areaID int64) (int64, error)
	CountCustomerOrders(ctx context.Context, customerID int64) (int64, error)
	AvgCustomerOrderValue(ctx context.Context, customerID int64) (float64, error)

	// Dynamic pricing memo rows. Upsert is a single conditional write keyed
	// by (service, area, version); concurrent calculations never create
	// duplicate rows.
	UpsertDynamicPricing(ctx context.Context, dp *DynamicPricing) error
	GetDynamicPricing(ctx context.Context, serviceID, areaID int64, version string) (*DynamicPricing, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RecordFilter narrows pricing-record queries.
type RecordFilter struct {
	ServiceID int64 // 0 = all
	AreaID    int64 // 0 = all
	Limit     int   // 0 = no limit
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
