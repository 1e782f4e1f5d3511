package repository

// Schema definitions for the Darzi database.
// Compatible with both SQLite and PostgreSQL.

const schemaServices = `
CREATE TABLE IF NOT EXISTS services (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    difficulty TEXT NOT NULL,
    estimated_days INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_services_active ON services(is_active);
CREATE INDEX IF NOT EXISTS idx_services_category ON services(category);
`

const schemaPricingAreas = `
CREATE TABLE IF NOT EXISTS pricing_areas (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    multiplier REAL NOT NULL DEFAULT 1.0,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_pricing_areas_active ON pricing_areas(is_active);
`

const schemaServicePricing = `
CREATE TABLE IF NOT EXISTS service_pricing (
    service_id INTEGER NOT NULL,
    area_id INTEGER NOT NULL,
    base_price REAL NOT NULL,
    PRIMARY KEY (service_id, area_id)
);
`

const schemaCustomerProfiles = `
CREATE TABLE IF NOT EXISTS customer_profiles (
    customer_id INTEGER PRIMARY KEY,
    loyalty_tier TEXT NOT NULL,
    discount_percentage REAL NOT NULL DEFAULT 0,
    total_orders INTEGER NOT NULL DEFAULT 0,
    average_order_value REAL NOT NULL DEFAULT 0,
    payment_reliability REAL NOT NULL DEFAULT 1.0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaPricingRules = `
CREATE TABLE IF NOT EXISTS pricing_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    condition TEXT NOT NULL,
    action TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pricing_rules_active ON pricing_rules(is_active, priority);
`

// schemaPricingRecords defines the append-only pricing history used as
// training input. Rows are never updated.
const schemaPricingRecords = `
CREATE TABLE IF NOT EXISTS pricing_records (
    id TEXT PRIMARY KEY,
    service_id INTEGER NOT NULL,
    area_id INTEGER NOT NULL,
    customer_id INTEGER,
    base_price REAL NOT NULL,
    final_price REAL NOT NULL,
    order_volume INTEGER NOT NULL DEFAULT 1,
    season TEXT NOT NULL,
    customer_segment TEXT NOT NULL DEFAULT 'regular',
    fabric_cost REAL NOT NULL DEFAULT 0,
    complexity_score REAL NOT NULL DEFAULT 1.0,
    success_rate REAL NOT NULL DEFAULT 1.0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pricing_records_pair ON pricing_records(service_id, area_id);
CREATE INDEX IF NOT EXISTS idx_pricing_records_customer ON pricing_records(customer_id);
CREATE INDEX IF NOT EXISTS idx_pricing_records_created ON pricing_records(created_at);
`

// schemaDynamicPricing defines the last-computed-price memo row. The unique
// constraint makes the conditional upsert atomic under concurrent pricing
// requests for the same pair.
const schemaDynamicPricing = `
CREATE TABLE IF NOT EXISTS dynamic_pricing (
    service_id INTEGER NOT NULL,
    area_id INTEGER NOT NULL,
    pricing_version TEXT NOT NULL,
    base_price REAL NOT NULL,
    calculated_price REAL NOT NULL,
    confidence_score REAL NOT NULL DEFAULT 0,
    factors_applied TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP,
    UNIQUE (service_id, area_id, pricing_version)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaServices,
		schemaPricingAreas,
		schemaServicePricing,
		schemaCustomerProfiles,
		schemaPricingRules,
		schemaPricingRecords,
		schemaDynamicPricing,
	}
}
