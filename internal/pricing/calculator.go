// Package pricing implements the dynamic price orchestrator: it composes
// the feature builder, predictor, rule engine, and fallback formula into one
// calculation, persists the audit row, and publishes the result.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/factors"
	"github.com/silaiwala/darzi/internal/features"
	"github.com/silaiwala/darzi/internal/predictor"
)

// Final safety band around the base price. Applied last, after every
// adjustment.
const (
	finalClampLower = 0.5
	finalClampUpper = 2.0
)

// fallbackConfidence marks the non-ML path as low trust.
const fallbackConfidence = 0.3

// pricingCacheTTL bounds staleness of cached calculation results.
const pricingCacheTTL = 15 * time.Minute

// dynamicPricingTTL is how long an upserted audit row stays marked current.
const dynamicPricingTTL = 24 * time.Hour

// Calculator orchestrates one dynamic price calculation end to end.
type Calculator struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	builder   *features.Builder
	predictor *predictor.Predictor
	now       func() time.Time
	tracer    trace.Tracer
}

// NewCalculator wires the orchestrator.
func NewCalculator(repo domain.Repository, cache domain.Cache, bus domain.EventBus, builder *features.Builder, pred *predictor.Predictor) *Calculator {
	return &Calculator{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		builder:   builder,
		predictor: pred,
		now:       time.Now,
		tracer:    otel.Tracer("darzi/pricing"),
	}
}

// WithClock overrides the time source for tests.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	c.builder.WithClock(now)
	return c
}

// Calculate produces the dynamic price for a (service, area) pair.
//
// The pipeline: resolve base price, build the feature context, try the ML
// predictor (falling back to the deterministic formula when no model is
// available), then layer on customer and seasonal adjustments, add fabric
// cost, and clamp to [0.5, 2.0]× base. The result is upserted as the
// DynamicPricing audit row, cached, and published to the bus.
func (c *Calculator) Calculate(ctx context.Context, serviceID, areaID int64, customerID *int64, oc *domain.OrderContext) (*domain.PricingResult, error) {
	ctx, span := c.tracer.Start(ctx, "pricing.calculate",
		trace.WithAttributes(
			attribute.Int64("service.id", serviceID),
			attribute.Int64("area.id", areaID),
		))
	defer span.End()

	svc, err := c.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service %d: %w", serviceID, err)
	}
	area, err := c.repo.GetArea(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("area %d: %w", areaID, err)
	}
	basePrice, err := c.repo.GetBasePrice(ctx, serviceID, areaID)
	if err != nil {
		return nil, err
	}

	fc, err := c.builder.Build(ctx, svc, area, customerID, oc)
	if err != nil {
		return nil, fmt.Errorf("build feature context: %w", err)
	}

	price, confidence := c.modelPrice(fc, basePrice)
	modelAdjustment := price - basePrice

	discount := 0.0
	if customerID != nil {
		price, discount = c.applyCustomerAdjustment(ctx, *customerID, price)
	}

	seasonal := seasonalMultiplier(fc.CurrentMonth)
	price *= seasonal

	if fc.FabricCost > 0 {
		price += fc.FabricCost
	}

	if price < basePrice*finalClampLower {
		price = basePrice * finalClampLower
	}
	if price > basePrice*finalClampUpper {
		price = basePrice * finalClampUpper
	}

	final := round2(price)
	result := &domain.PricingResult{
		ServiceID:       serviceID,
		AreaID:          areaID,
		BasePrice:       basePrice,
		CalculatedPrice: final,
		PriceMultiplier: round2(final / basePrice),
		ConfidenceScore: confidence,
		FactorsApplied:  appliedFactors(fc),
		Breakdown: domain.PriceBreakdown{
			BasePrice:          basePrice,
			ModelAdjustment:    round2(modelAdjustment),
			CustomerDiscount:   discount,
			SeasonalMultiplier: seasonal,
			FabricCost:         fc.FabricCost,
			FinalPrice:         final,
		},
	}

	if err := c.persist(ctx, result); err != nil {
		// The price itself is still good; losing the audit row is not
		// a reason to fail the request.
		slog.Error("persist pricing result failed",
			"service_id", serviceID,
			"area_id", areaID,
			"error", err,
		)
	}
	c.announce(ctx, result)

	return result, nil
}

// CalculateCached serves the last cached result for the pair when one is
// fresh, computing and caching otherwise. Used by listing endpoints where a
// slightly stale price is acceptable.
func (c *Calculator) CalculateCached(ctx context.Context, serviceID, areaID int64) (*domain.PricingResult, error) {
	if cached, err := c.cache.GetPricing(ctx, serviceID, areaID); err == nil && cached != nil {
		return cached, nil
	}
	return c.Calculate(ctx, serviceID, areaID, nil, nil)
}

// modelPrice runs the predictor, falling back to the deterministic formula
// when no usable model exists.
func (c *Calculator) modelPrice(fc *domain.FeatureContext, basePrice float64) (price, confidence float64) {
	pred, err := c.predictor.Predict(fc, basePrice)
	if err != nil {
		if !errors.Is(err, domain.ErrNoModel) {
			slog.Warn("ml prediction failed, using rule-based fallback",
				"service_id", fc.ServiceID,
				"error", err,
			)
		}
		return RuleBasedPrice(fc, basePrice), fallbackConfidence
	}
	return pred.FinalPrice, pred.Confidence
}

// applyCustomerAdjustment applies the loyalty discount and the reliability
// surcharge. A missing profile means no adjustment.
func (c *Calculator) applyCustomerAdjustment(ctx context.Context, customerID int64, price float64) (adjusted, discount float64) {
	profile, err := c.repo.GetCustomerProfile(ctx, customerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("customer profile lookup failed",
				"customer_id", customerID,
				"error", err,
			)
		}
		return price, 0
	}

	discount = profile.DiscountPercentage
	if discount > 0 {
		price *= 1 - discount/100
	}
	if profile.PaymentReliability < 0.8 {
		price *= 1.1
	}
	return price, discount
}

func (c *Calculator) persist(ctx context.Context, result *domain.PricingResult) error {
	now := c.now().UTC()
	expires := now.Add(dynamicPricingTTL)
	dp := &domain.DynamicPricing{
		ServiceID:       result.ServiceID,
		AreaID:          result.AreaID,
		PricingVersion:  domain.PricingVersion,
		BasePrice:       result.BasePrice,
		CalculatedPrice: result.CalculatedPrice,
		ConfidenceScore: result.ConfidenceScore,
		FactorsApplied:  result.FactorsApplied,
		IsActive:        true,
		CreatedAt:       now,
		ExpiresAt:       &expires,
	}
	if err := c.repo.UpsertDynamicPricing(ctx, dp); err != nil {
		return err
	}

	if err := c.cache.SetPricing(ctx, result.ServiceID, result.AreaID, result, pricingCacheTTL); err != nil {
		slog.Warn("cache pricing result failed",
			"service_id", result.ServiceID,
			"area_id", result.AreaID,
			"error", err,
		)
	}
	return nil
}

func (c *Calculator) announce(ctx context.Context, result *domain.PricingResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, domain.TopicPricingCalculated, payload); err != nil {
		slog.Warn("publish pricing event failed",
			"service_id", result.ServiceID,
			"error", err,
		)
	}
}

// RuleBasedPrice is the deterministic alternative to ML prediction: base
// price times the area multiplier, every multiplier-table factor for the
// context's attributes, the peak-season and volume and urgency factors, with
// raw fabric cost added last.
func RuleBasedPrice(fc *domain.FeatureContext, basePrice float64) float64 {
	price := basePrice

	price *= fc.AreaMultiplier
	price *= factors.Lookup(factors.DimServiceDifficulty, fc.ServiceDifficulty)
	price *= factors.Lookup(factors.DimFabricType, fc.FabricType)
	price *= factors.Lookup(factors.DimGarmentLength, fc.GarmentLength)
	price *= factors.Lookup(factors.DimDesignComplexity, fc.DesignComplexity)
	price *= factors.Lookup(factors.DimLiningRequired, fc.LiningRequired)
	price *= factors.Lookup(factors.DimHandworkEmbroidery, fc.HandworkEmbroidery)
	price *= factors.Lookup(factors.DimTrimsAccessories, fc.TrimsAccessories)
	price *= factors.Lookup(factors.DimFitAdjustments, fc.FitAdjustments)

	if fc.IsPeakSeason {
		price *= 1.3
	}

	switch {
	case fc.OrderVolume >= 10:
		price *= 0.85
	case fc.OrderVolume >= 5:
		price *= 0.9
	}

	switch fc.UrgencyLevel {
	case domain.UrgencyUrgent:
		price *= 1.5
	case domain.UrgencyRush:
		price *= 2.0
	}

	if fc.SpecialRequirements {
		price *= 1.15
	}

	if fc.FabricCost > 0 {
		price += fc.FabricCost
	}
	return price
}

// seasonalMultiplier looks up the month's demand multiplier, neutral for
// anything out of range.
func seasonalMultiplier(month int) float64 {
	if m, ok := domain.SeasonalMultiplier[month]; ok {
		return m
	}
	return 1.0
}

// appliedFactors summarizes the non-default contributing factors. Purely
// descriptive; it never feeds back into the number.
func appliedFactors(fc *domain.FeatureContext) map[string]string {
	out := make(map[string]string)

	if fc.ServiceDifficulty == domain.DifficultyAdvanced || fc.ServiceDifficulty == domain.DifficultyExpert {
		out["difficulty"] = fmt.Sprintf("%s level service", fc.ServiceDifficulty)
	}
	if fc.FabricType != "cotton" {
		out["fabric"] = fmt.Sprintf("%s fabric", fc.FabricType)
	}
	if fc.DesignComplexity != "simple" {
		out["design"] = fmt.Sprintf("%s design", fc.DesignComplexity)
	}
	if fc.LiningRequired != "none" {
		out["lining"] = fmt.Sprintf("%s lining", fc.LiningRequired)
	}
	if fc.HandworkEmbroidery != "none" {
		out["handwork"] = fmt.Sprintf("%s handwork", fc.HandworkEmbroidery)
	}
	if fc.GarmentLength != "medium" {
		out["length"] = fmt.Sprintf("%s length", fc.GarmentLength)
	}
	if fc.TrimsAccessories != "minimal" {
		out["trims"] = fmt.Sprintf("%s trims", fc.TrimsAccessories)
	}
	if fc.FitAdjustments != "none" {
		out["fit"] = fmt.Sprintf("%s fit adjustments", fc.FitAdjustments)
	}
	if fc.IsPeakSeason {
		out["seasonal"] = "peak season pricing"
	}
	if fc.OrderVolume > 1 {
		out["volume"] = fmt.Sprintf("bulk order (%d items)", fc.OrderVolume)
	}
	if fc.UrgencyLevel != domain.UrgencyNormal {
		out["urgency"] = fmt.Sprintf("%s delivery", fc.UrgencyLevel)
	}
	if fc.SpecialRequirements {
		out["special"] = "special requirements"
	}
	if fc.HasCustomer && fc.CustomerLoyaltyTier != domain.TierNew {
		out["customer"] = fmt.Sprintf("%s customer", fc.CustomerLoyaltyTier)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
