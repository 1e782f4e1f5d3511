package domain

import "time"

// PricingVersion tags the current generation of the pricing formula and
// model. DynamicPricing rows are keyed by it.
const PricingVersion = "v1.0"

// PricingResult is the output of one dynamic price calculation.
type PricingResult struct {
	ServiceID       int64             `json:"service_id"`
	AreaID          int64             `json:"area_id"`
	BasePrice       float64           `json:"base_price"`
	CalculatedPrice float64           `json:"calculated_price"`
	PriceMultiplier float64           `json:"price_multiplier"`
	ConfidenceScore float64           `json:"confidence_score"`
	FactorsApplied  map[string]string `json:"factors_applied"`
	Breakdown       PriceBreakdown    `json:"breakdown"`
}

// PriceBreakdown is the per-step explanation trail for a calculated price.
// Purely descriptive; it has no effect on the number.
type PriceBreakdown struct {
	BasePrice          float64 `json:"base_price"`
	ModelAdjustment    float64 `json:"model_adjustment"`
	CustomerDiscount   float64 `json:"customer_discount_percent"`
	SeasonalMultiplier float64 `json:"seasonal_multiplier"`
	FabricCost         float64 `json:"fabric_cost"`
	FinalPrice         float64 `json:"final_price"`
}

// DynamicPricing is the memo/audit row for the last computed price of a
// (service, area) pair under a pricing version. Exactly one row exists per
// key; every calculation overwrites it.
type DynamicPricing struct {
	ServiceID       int64             `json:"serviceId"`
	AreaID          int64             `json:"areaId"`
	PricingVersion  string            `json:"pricingVersion"`
	BasePrice       float64           `json:"basePrice"`
	CalculatedPrice float64           `json:"calculatedPrice"`
	ConfidenceScore float64           `json:"confidenceScore"`
	FactorsApplied  map[string]string `json:"factorsApplied"`
	IsActive        bool              `json:"isActive"`
	CreatedAt       time.Time         `json:"createdAt"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
}

// PricingRecord is an immutable historical log entry created at order
// completion. Training input only; never updated.
type PricingRecord struct {
	ID              string    `json:"id"`
	ServiceID       int64     `json:"serviceId"`
	AreaID          int64     `json:"areaId"`
	CustomerID      *int64    `json:"customerId,omitempty"`
	BasePrice       float64   `json:"basePrice"`
	FinalPrice      float64   `json:"finalPrice"`
	OrderVolume     int       `json:"orderVolume"`
	Season          string    `json:"season"`
	CustomerSegment string    `json:"customerSegment"`
	FabricCost      float64   `json:"fabricCost"`
	ComplexityScore float64   `json:"complexityScore"`
	SuccessRate     float64   `json:"successRate"` // [0,1]
	CreatedAt       time.Time `json:"createdAt"`
}

// Season names stored on pricing records.
const (
	SeasonNormal   = "normal"
	SeasonFestival = "festival"
	SeasonWedding  = "wedding"
	SeasonHoliday  = "holiday"
)

// SeasonForMonth names the demand season for a calendar month.
func SeasonForMonth(month int) string {
	switch {
	case month == 8 || month == 9:
		return SeasonFestival
	case month == 10 || month == 11:
		return SeasonWedding
	case month == 12:
		return SeasonHoliday
	default:
		return SeasonNormal
	}
}

// IsPeakSeasonName reports whether a stored season name counts as peak.
func IsPeakSeasonName(season string) bool {
	return season == SeasonFestival || season == SeasonWedding || season == SeasonHoliday
}

// OrderCompletion is the payload appended when an order finishes. Success is
// 1.0 unless the order was cancelled.
type OrderCompletion struct {
	ServiceID  int64   `json:"service_id"`
	AreaID     int64   `json:"area_id"`
	CustomerID *int64  `json:"customer_id,omitempty"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	Quantity   int     `json:"quantity"`
	Cancelled  bool    `json:"cancelled"`
}
