// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveService stores or updates a catalog service.
func (r *SQLRepository) SaveService(ctx context.Context, svc *domain.Service) error {
	query := `
		INSERT INTO services (id, name, category, difficulty, estimated_days, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			difficulty = excluded.difficulty,
			estimated_days = excluded.estimated_days,
			is_active = excluded.is_active
	`
	createdAt := svc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		svc.ID, svc.Name, svc.Category, svc.Difficulty,
		svc.EstimatedDays, svc.IsActive, createdAt,
	)
	return err
}

// GetService retrieves a catalog service by ID.
func (r *SQLRepository) GetService(ctx context.Context, serviceID int64) (*domain.Service, error) {
	query := `
		SELECT id, name, category, difficulty, estimated_days, is_active, created_at
		FROM services
		WHERE id = ?
	`

	var svc domain.Service
	err := r.db.QueryRowContext(ctx, r.rebind(query), serviceID).Scan(
		&svc.ID, &svc.Name, &svc.Category, &svc.Difficulty,
		&svc.EstimatedDays, &svc.IsActive, &svc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// SaveArea stores or updates a pricing area.
func (r *SQLRepository) SaveArea(ctx context.Context, area *domain.PricingArea) error {
	query := `
		INSERT INTO pricing_areas (id, name, multiplier, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			multiplier = excluded.multiplier,
			is_active = excluded.is_active
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		area.ID, area.Name, area.Multiplier, area.IsActive,
	)
	return err
}

// GetArea retrieves a pricing area by ID.
func (r *SQLRepository) GetArea(ctx context.Context, areaID int64) (*domain.PricingArea, error) {
	query := `SELECT id, name, multiplier, is_active FROM pricing_areas WHERE id = ?`

	var area domain.PricingArea
	err := r.db.QueryRowContext(ctx, r.rebind(query), areaID).Scan(
		&area.ID, &area.Name, &area.Multiplier, &area.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &area, nil
}

// ListActiveAreas retrieves every active pricing area, ordered by ID.
func (r *SQLRepository) ListActiveAreas(ctx context.Context) ([]*domain.PricingArea, error) {
	query := `SELECT id, name, multiplier, is_active FROM pricing_areas WHERE is_active = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var areas []*domain.PricingArea
	for rows.Next() {
		var area domain.PricingArea
		if err := rows.Scan(&area.ID, &area.Name, &area.Multiplier, &area.IsActive); err != nil {
			return nil, err
		}
		areas = append(areas, &area)
	}
	return areas, rows.Err()
}

// SaveBasePrice stores or updates the base price for a (service, area) pair.
func (r *SQLRepository) SaveBasePrice(ctx context.Context, sp *domain.ServicePricing) error {
	query := `
		INSERT INTO service_pricing (service_id, area_id, base_price)
		VALUES (?, ?, ?)
		ON CONFLICT (service_id, area_id) DO UPDATE SET
			base_price = excluded.base_price
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query), sp.ServiceID, sp.AreaID, sp.BasePrice)
	return err
}

// GetBasePrice retrieves the base price for a (service, area) pair.
func (r *SQLRepository) GetBasePrice(ctx context.Context, serviceID, areaID int64) (float64, error) {
	query := `SELECT base_price FROM service_pricing WHERE service_id = ? AND area_id = ?`

	var price float64
	err := r.db.QueryRowContext(ctx, r.rebind(query), serviceID, areaID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNoBasePricing
	}
	if err != nil {
		return 0, err
	}
	return price, nil
}

// SaveCustomerProfile stores or updates a customer pricing profile.
func (r *SQLRepository) SaveCustomerProfile(ctx context.Context, profile *domain.CustomerProfile) error {
	query := `
		INSERT INTO customer_profiles (
			customer_id, loyalty_tier, discount_percentage, total_orders,
			average_order_value, payment_reliability, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id) DO UPDATE SET
			loyalty_tier = excluded.loyalty_tier,
			discount_percentage = excluded.discount_percentage,
			total_orders = excluded.total_orders,
			average_order_value = excluded.average_order_value,
			payment_reliability = excluded.payment_reliability,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.CustomerID, profile.LoyaltyTier, profile.DiscountPercentage,
		profile.TotalOrders, profile.AverageOrderValue, profile.PaymentReliability,
		profile.CreatedAt, profile.UpdatedAt,
	)
	return err
}

// GetCustomerProfile retrieves a customer pricing profile.
func (r *SQLRepository) GetCustomerProfile(ctx context.Context, customerID int64) (*domain.CustomerProfile, error) {
	query := `
		SELECT customer_id, loyalty_tier, discount_percentage, total_orders,
			   average_order_value, payment_reliability, created_at, updated_at
		FROM customer_profiles
		WHERE customer_id = ?
	`

	var p domain.CustomerProfile
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(
		&p.CustomerID, &p.LoyaltyTier, &p.DiscountPercentage, &p.TotalOrders,
		&p.AverageOrderValue, &p.PaymentReliability, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveRule stores or updates a pricing rule. Condition and action are stored
// as JSON documents.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.PricingRule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("encode condition: %w", err)
	}
	action, err := json.Marshal(rule.Action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}

	query := `
		INSERT INTO pricing_rules (id, name, condition, action, priority, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			condition = excluded.condition,
			action = excluded.action,
			priority = excluded.priority,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, string(condition), string(action),
		rule.Priority, rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRule retrieves a pricing rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.PricingRule, error) {
	query := `
		SELECT id, name, condition, action, priority, is_active, created_at, updated_at
		FROM pricing_rules
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListActiveRules retrieves active rules ordered by priority descending,
// name ascending on ties. This is the engine's evaluation order.
func (r *SQLRepository) ListActiveRules(ctx context.Context) ([]*domain.PricingRule, error) {
	query := `
		SELECT id, name, condition, action, priority, is_active, created_at, updated_at
		FROM pricing_rules
		WHERE is_active = ?
		ORDER BY priority DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PricingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.PricingRule, error) {
	var rule domain.PricingRule
	var condition, action string

	if err := row.Scan(
		&rule.ID, &rule.Name, &condition, &action,
		&rule.Priority, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(condition), &rule.Condition); err != nil {
		return nil, fmt.Errorf("decode condition for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(action), &rule.Action); err != nil {
		return nil, fmt.Errorf("decode action for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

// SavePricingRecord appends a historical pricing record. Records are
// immutable; there is no update path.
func (r *SQLRepository) SavePricingRecord(ctx context.Context, rec *domain.PricingRecord) error {
	query := `
		INSERT INTO pricing_records (
			id, service_id, area_id, customer_id, base_price, final_price,
			order_volume, season, customer_segment, fabric_cost,
			complexity_score, success_rate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var customerID sql.NullInt64
	if rec.CustomerID != nil {
		customerID = sql.NullInt64{Int64: *rec.CustomerID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.ServiceID, rec.AreaID, customerID,
		rec.BasePrice, rec.FinalPrice, rec.OrderVolume,
		rec.Season, rec.CustomerSegment, rec.FabricCost,
		rec.ComplexityScore, rec.SuccessRate, rec.CreatedAt,
	)
	return err
}

// ListPricingRecords retrieves historical records, newest first, narrowed by
// the filter.
func (r *SQLRepository) ListPricingRecords(ctx context.Context, filter domain.RecordFilter) ([]*domain.PricingRecord, error) {
	query := `
		SELECT id, service_id, area_id, customer_id, base_price, final_price,
			   order_volume, season, customer_segment, fabric_cost,
			   complexity_score, success_rate, created_at
		FROM pricing_records
	`
	var conds []string
	var args []interface{}
	if filter.ServiceID != 0 {
		conds = append(conds, "service_id = ?")
		args = append(args, filter.ServiceID)
	}
	if filter.AreaID != 0 {
		conds = append(conds, "area_id = ?")
		args = append(args, filter.AreaID)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PricingRecord
	for rows.Next() {
		var rec domain.PricingRecord
		var customerID sql.NullInt64
		if err := rows.Scan(
			&rec.ID, &rec.ServiceID, &rec.AreaID, &customerID,
			&rec.BasePrice, &rec.FinalPrice, &rec.OrderVolume,
			&rec.Season, &rec.CustomerSegment, &rec.FabricCost,
			&rec.ComplexityScore, &rec.SuccessRate, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if customerID.Valid {
			id := customerID.Int64
			rec.CustomerID = &id
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// CountPricingRecords counts historical records for a (service, area) pair.
func (r *SQLRepository) CountPricingRecords(ctx context.Context, serviceID, areaID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM pricing_records WHERE service_id = ? AND area_id = ?`

	var n int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), serviceID, areaID).Scan(&n)
	return n, err
}

// CountCustomerOrders counts historical records attributed to a customer.
func (r *SQLRepository) CountCustomerOrders(ctx context.Context, customerID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM pricing_records WHERE customer_id = ?`

	var n int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(&n)
	return n, err
}

// AvgCustomerOrderValue averages the final prices of a customer's orders.
// Zero when the customer has no history.
func (r *SQLRepository) AvgCustomerOrderValue(ctx context.Context, customerID int64) (float64, error) {
	query := `SELECT COALESCE(AVG(final_price), 0) FROM pricing_records WHERE customer_id = ?`

	var avg float64
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(&avg)
	return avg, err
}

// UpsertDynamicPricing writes the memo row for a (service, area, version)
// key as a single conditional upsert. The unique constraint guarantees
// concurrent calculations converge on one row instead of creating
// duplicates.
func (r *SQLRepository) UpsertDynamicPricing(ctx context.Context, dp *domain.DynamicPricing) error {
	factors, err := json.Marshal(dp.FactorsApplied)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}

	query := `
		INSERT INTO dynamic_pricing (
			service_id, area_id, pricing_version, base_price, calculated_price,
			confidence_score, factors_applied, is_active, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (service_id, area_id, pricing_version) DO UPDATE SET
			base_price = excluded.base_price,
			calculated_price = excluded.calculated_price,
			confidence_score = excluded.confidence_score,
			factors_applied = excluded.factors_applied,
			is_active = excluded.is_active,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	var expires interface{}
	if dp.ExpiresAt != nil {
		expires = *dp.ExpiresAt
	}

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		dp.ServiceID, dp.AreaID, dp.PricingVersion,
		dp.BasePrice, dp.CalculatedPrice, dp.ConfidenceScore,
		string(factors), dp.IsActive, dp.CreatedAt, expires,
	)
	return err
}

// GetDynamicPricing retrieves the memo row for a (service, area, version)
// key.
func (r *SQLRepository) GetDynamicPricing(ctx context.Context, serviceID, areaID int64, version string) (*domain.DynamicPricing, error) {
	query := `
		SELECT service_id, area_id, pricing_version, base_price, calculated_price,
			   confidence_score, factors_applied, is_active, created_at, expires_at
		FROM dynamic_pricing
		WHERE service_id = ? AND area_id = ? AND pricing_version = ?
	`

	var dp domain.DynamicPricing
	var factors string
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, r.rebind(query), serviceID, areaID, version).Scan(
		&dp.ServiceID, &dp.AreaID, &dp.PricingVersion,
		&dp.BasePrice, &dp.CalculatedPrice, &dp.ConfidenceScore,
		&factors, &dp.IsActive, &dp.CreatedAt, &expires,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if factors != "" {
		json.Unmarshal([]byte(factors), &dp.FactorsApplied)
	}
	if expires.Valid {
		t := expires.Time
		dp.ExpiresAt = &t
	}
	return &dp, nil
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
