package domain

import "time"

// Loyalty tiers.
const (
	TierNew       = "new"
	TierRegular   = "regular"
	TierVIP       = "vip"
	TierWholesale = "wholesale"
)

// CustomerProfile is the loyalty profile used for customer-specific pricing
// adjustments. Created lazily the first time a customer is priced.
type CustomerProfile struct {
	CustomerID         int64     `json:"customerId"`
	LoyaltyTier        string    `json:"loyaltyTier"`
	DiscountPercentage float64   `json:"discountPercentage"`
	TotalOrders        int       `json:"totalOrders"`
	AverageOrderValue  float64   `json:"averageOrderValue"`
	PaymentReliability float64   `json:"paymentReliability"` // [0,1]
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DeriveLoyaltyTier maps a lifetime completed-order count to a tier.
func DeriveLoyaltyTier(totalOrders int) string {
	switch {
	case totalOrders >= 20:
		return TierVIP
	case totalOrders >= 10:
		return TierRegular
	default:
		return TierNew
	}
}

// NewCustomerProfile builds a fresh profile from order history. VIP customers
// get a 5% discount at creation time only; later tier changes do not touch an
// existing discount.
func NewCustomerProfile(customerID int64, totalOrders int, avgOrderValue float64) *CustomerProfile {
	tier := DeriveLoyaltyTier(totalOrders)

	discount := 0.0
	if tier == TierVIP {
		discount = 5.0
	}

	now := time.Now().UTC()
	return &CustomerProfile{
		CustomerID:         customerID,
		LoyaltyTier:        tier,
		DiscountPercentage: discount,
		TotalOrders:        totalOrders,
		AverageOrderValue:  avgOrderValue,
		PaymentReliability: 1.0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
