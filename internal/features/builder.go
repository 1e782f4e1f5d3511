// Package features assembles the feature context describing one pricing
// request.
package features

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

// DefaultSuccessRate is assumed for fresh requests with no order history.
const DefaultSuccessRate = 0.8

// Builder constructs a complete FeatureContext from a service, an area, and
// optional customer and order-context inputs, filling defaults for every
// recognized attribute.
type Builder struct {
	repo domain.Repository
	now  func() time.Time
}

// NewBuilder creates a feature context builder.
func NewBuilder(repo domain.Repository) *Builder {
	return &Builder{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock overrides the time source. Used by tests to pin the month.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles the context. Order-context overrides replace defaults;
// customer-derived fields are additive and never overridden by them. Looking
// up a customer may create their pricing profile as a side effect.
func (b *Builder) Build(ctx context.Context, svc *domain.Service, area *domain.PricingArea, customerID *int64, oc *domain.OrderContext) (*domain.FeatureContext, error) {
	now := b.now().UTC()
	month := int(now.Month())

	fc := &domain.FeatureContext{
		ServiceID:         svc.ID,
		ServiceDifficulty: svc.Difficulty,
		EstimatedDays:     svc.EstimatedDays,
		AreaID:            area.ID,
		AreaMultiplier:    area.Multiplier,

		FabricType:         "cotton",
		GarmentLength:      "medium",
		DesignComplexity:   "simple",
		LiningRequired:     "none",
		HandworkEmbroidery: "none",
		TrimsAccessories:   "minimal",
		FitAdjustments:     "none",

		OrderVolume:         1,
		UrgencyLevel:        domain.UrgencyNormal,
		FabricCost:          0,
		SpecialRequirements: false,

		CurrentMonth: month,
		CurrentYear:  now.Year(),
		IsPeakSeason: domain.PeakMonths[month],

		ComplexityScore: svc.ComplexityScore(),
		SuccessRate:     DefaultSuccessRate,
	}

	if customerID != nil {
		profile, err := b.getOrCreateProfile(ctx, *customerID)
		if err != nil {
			// Customer data enriches pricing but is not required for it.
			slog.Warn("customer profile unavailable, pricing without it",
				"customer_id", *customerID,
				"error", err,
			)
		} else {
			fc.HasCustomer = true
			fc.CustomerLoyaltyTier = profile.LoyaltyTier
			fc.CustomerTotalOrders = profile.TotalOrders
			fc.CustomerAvgOrderValue = profile.AverageOrderValue
			fc.CustomerPaymentReliability = profile.PaymentReliability
		}
	}

	if oc != nil {
		applyOverrides(fc, oc)
	}

	return fc, nil
}

// getOrCreateProfile fetches a customer's pricing profile, deriving a fresh
// one from order history on first contact.
func (b *Builder) getOrCreateProfile(ctx context.Context, customerID int64) (*domain.CustomerProfile, error) {
	profile, err := b.repo.GetCustomerProfile(ctx, customerID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	totalOrders, err := b.repo.CountCustomerOrders(ctx, customerID)
	if err != nil {
		return nil, err
	}
	avgValue, err := b.repo.AvgCustomerOrderValue(ctx, customerID)
	if err != nil {
		return nil, err
	}

	profile = domain.NewCustomerProfile(customerID, int(totalOrders), avgValue)
	if err := b.repo.SaveCustomerProfile(ctx, profile); err != nil {
		return nil, err
	}

	slog.Info("customer pricing profile created",
		"customer_id", customerID,
		"loyalty_tier", profile.LoyaltyTier,
		"total_orders", profile.TotalOrders,
	)
	return profile, nil
}

func applyOverrides(fc *domain.FeatureContext, oc *domain.OrderContext) {
	if oc.Quantity != nil && *oc.Quantity > 0 {
		fc.OrderVolume = *oc.Quantity
	}
	if oc.FabricCost != nil && *oc.FabricCost >= 0 {
		fc.FabricCost = *oc.FabricCost
	}
	if oc.Urgency != nil {
		fc.UrgencyLevel = *oc.Urgency
	}
	if oc.SpecialRequirements != nil {
		fc.SpecialRequirements = *oc.SpecialRequirements
	}
	if oc.FabricType != nil {
		fc.FabricType = *oc.FabricType
	}
	if oc.GarmentLength != nil {
		fc.GarmentLength = *oc.GarmentLength
	}
	if oc.DesignComplexity != nil {
		fc.DesignComplexity = *oc.DesignComplexity
	}
	if oc.LiningRequired != nil {
		fc.LiningRequired = *oc.LiningRequired
	}
	if oc.HandworkEmbroidery != nil {
		fc.HandworkEmbroidery = *oc.HandworkEmbroidery
	}
	if oc.TrimsAccessories != nil {
		fc.TrimsAccessories = *oc.TrimsAccessories
	}
	if oc.FitAdjustments != nil {
		fc.FitAdjustments = *oc.FitAdjustments
	}
}
