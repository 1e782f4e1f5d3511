package domain

// Categorical attribute values recognized by the pricing engine. Unknown
// values are never an error: multiplier lookups fall through to the neutral
// factor 1.0.
const (
	UrgencyNormal = "normal"
	UrgencyUrgent = "urgent"
	UrgencyRush   = "rush"
)

// PeakMonths are the festival/wedding months (Aug–Dec) treated as peak season.
var PeakMonths = map[int]bool{8: true, 9: true, 10: true, 11: true, 12: true}

// SeasonalMultiplier maps a calendar month to its demand multiplier.
var SeasonalMultiplier = map[int]float64{
	1:  0.9, // post-holiday discount
	2:  0.9,
	3:  1.0,
	4:  1.0,
	5:  1.0,
	6:  1.0,
	7:  1.0,
	8:  1.1, // festival season starts
	9:  1.2,
	10: 1.3, // wedding season
	11: 1.4, // peak wedding season
	12: 1.3,
}

// FeatureContext is the flat attribute snapshot describing one pricing
// request. It is built once per request, passed read-only into the rule
// engine and predictor, and never persisted directly (only summarized into
// the factors_applied audit map).
type FeatureContext struct {
	ServiceID         int64   `json:"service_id"`
	ServiceDifficulty string  `json:"service_difficulty"`
	EstimatedDays     int     `json:"estimated_days"`
	AreaID            int64   `json:"area_id"`
	AreaMultiplier    float64 `json:"area_multiplier"`

	FabricType         string `json:"fabric_type"`
	GarmentLength      string `json:"garment_length"`
	DesignComplexity   string `json:"design_complexity"`
	LiningRequired     string `json:"lining_required"`
	HandworkEmbroidery string `json:"handwork_embroidery"`
	TrimsAccessories   string `json:"trims_accessories"`
	FitAdjustments     string `json:"fit_adjustments"`

	OrderVolume         int     `json:"order_volume"`
	UrgencyLevel        string  `json:"urgency_level"`
	FabricCost          float64 `json:"fabric_cost"`
	SpecialRequirements bool    `json:"special_requirements"`

	CurrentMonth int  `json:"current_month"`
	CurrentYear  int  `json:"current_year"`
	IsPeakSeason bool `json:"is_peak_season"`

	ComplexityScore float64 `json:"complexity_score"`
	SuccessRate     float64 `json:"success_rate"`

	// Customer-derived fields, present only when a customer id was supplied.
	// These are additive: order-context overrides never replace them.
	HasCustomer                bool    `json:"has_customer,omitempty"`
	CustomerLoyaltyTier        string  `json:"customer_loyalty_tier,omitempty"`
	CustomerTotalOrders        int     `json:"customer_total_orders,omitempty"`
	CustomerAvgOrderValue      float64 `json:"customer_avg_order_value,omitempty"`
	CustomerPaymentReliability float64 `json:"customer_payment_reliability,omitempty"`
}

// Field resolves a rule-condition field name against the context. The second
// return value reports whether the field is known; rule conditions on unknown
// fields are false, never an error.
func (fc *FeatureContext) Field(name string) (interface{}, bool) {
	switch name {
	case "service_id":
		return fc.ServiceID, true
	case "service_difficulty":
		return fc.ServiceDifficulty, true
	case "estimated_days":
		return fc.EstimatedDays, true
	case "area_id":
		return fc.AreaID, true
	case "area_multiplier":
		return fc.AreaMultiplier, true
	case "fabric_type":
		return fc.FabricType, true
	case "garment_length":
		return fc.GarmentLength, true
	case "design_complexity":
		return fc.DesignComplexity, true
	case "lining_required":
		return fc.LiningRequired, true
	case "handwork_embroidery":
		return fc.HandworkEmbroidery, true
	case "trims_accessories":
		return fc.TrimsAccessories, true
	case "fit_adjustments":
		return fc.FitAdjustments, true
	case "order_volume":
		return fc.OrderVolume, true
	case "urgency_level":
		return fc.UrgencyLevel, true
	case "fabric_cost":
		return fc.FabricCost, true
	case "special_requirements":
		return fc.SpecialRequirements, true
	case "current_month":
		return fc.CurrentMonth, true
	case "current_year":
		return fc.CurrentYear, true
	case "is_peak_season":
		return fc.IsPeakSeason, true
	case "complexity_score":
		return fc.ComplexityScore, true
	case "success_rate":
		return fc.SuccessRate, true
	case "customer_loyalty_tier":
		if !fc.HasCustomer {
			return nil, false
		}
		return fc.CustomerLoyaltyTier, true
	case "customer_total_orders":
		if !fc.HasCustomer {
			return nil, false
		}
		return fc.CustomerTotalOrders, true
	case "customer_avg_order_value":
		if !fc.HasCustomer {
			return nil, false
		}
		return fc.CustomerAvgOrderValue, true
	case "customer_payment_reliability":
		if !fc.HasCustomer {
			return nil, false
		}
		return fc.CustomerPaymentReliability, true
	}
	return nil, false
}

// OrderContext carries the per-order override fields accepted by the pricing
// request API. Pointer fields distinguish "absent" from zero values so that
// defaults are only replaced when a field was actually sent.
type OrderContext struct {
	Quantity            *int     `json:"quantity,omitempty"`
	FabricCost          *float64 `json:"fabric_cost,omitempty"`
	Urgency             *string  `json:"urgency,omitempty"`
	SpecialRequirements *bool    `json:"special_requirements,omitempty"`
	FabricType          *string  `json:"fabric_type,omitempty"`
	GarmentLength       *string  `json:"garment_length,omitempty"`
	DesignComplexity    *string  `json:"design_complexity,omitempty"`
	LiningRequired      *string  `json:"lining_required,omitempty"`
	HandworkEmbroidery  *string  `json:"handwork_embroidery,omitempty"`
	TrimsAccessories    *string  `json:"trims_accessories,omitempty"`
	FitAdjustments      *string  `json:"fit_adjustments,omitempty"`
}
