package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/features"
	"github.com/silaiwala/darzi/internal/predictor"
)

// priceElasticity is the assumed demand elasticity for revenue projections:
// a 10% price increase loses 5% of orders.
const priceElasticity = -0.5

// recommendThreshold is the price-change percentage above which a
// recommendation is emitted.
const recommendThreshold = 10.0

// RevenueImpact projects the order and revenue effect of moving to an
// optimized price.
type RevenueImpact struct {
	CurrentOrders      int64   `json:"current_orders"`
	ProjectedOrders    float64 `json:"projected_orders"`
	RevenueChange      float64 `json:"revenue_change"`
	PriceChangePercent float64 `json:"price_change_percent"`
}

// OptimizedPrice compares the current catalog price of one area with the
// model's suggestion.
type OptimizedPrice struct {
	AreaID         int64         `json:"area_id"`
	AreaName       string        `json:"area_name"`
	CurrentPrice   float64       `json:"current_price"`
	OptimizedPrice float64       `json:"optimized_price"`
	Confidence     float64       `json:"confidence"`
	RevenueImpact  RevenueImpact `json:"potential_revenue"`
}

// OptimizationResult is the per-service optimization report.
type OptimizationResult struct {
	ServiceID       int64            `json:"service_id"`
	ServiceName     string           `json:"service"`
	OptimizedPrices []OptimizedPrice `json:"optimized_prices"`
	Recommendations []string         `json:"recommendations"`
}

// Optimizer produces pricing recommendations for a service across all
// active areas using the trained model.
type Optimizer struct {
	repo      domain.Repository
	builder   *features.Builder
	predictor *predictor.Predictor
}

// NewOptimizer wires the optimizer.
func NewOptimizer(repo domain.Repository, builder *features.Builder, pred *predictor.Predictor) *Optimizer {
	return &Optimizer{repo: repo, builder: builder, predictor: pred}
}

// OptimizeService compares current and model-optimized prices per active
// area and projects the revenue impact of each change. Areas without base
// pricing, and all areas when no model is trained, are simply absent from
// the report.
func (o *Optimizer) OptimizeService(ctx context.Context, serviceID int64) (*OptimizationResult, error) {
	svc, err := o.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service %d: %w", serviceID, err)
	}
	areas, err := o.repo.ListActiveAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}

	result := &OptimizationResult{
		ServiceID:       serviceID,
		ServiceName:     svc.Name,
		OptimizedPrices: []OptimizedPrice{},
		Recommendations: []string{},
	}

	for _, area := range areas {
		current, err := o.repo.GetBasePrice(ctx, serviceID, area.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNoBasePricing) {
				continue
			}
			return nil, err
		}

		fc, err := o.builder.Build(ctx, svc, area, nil, nil)
		if err != nil {
			return nil, err
		}
		pred, err := o.predictor.Predict(fc, current)
		if err != nil {
			if errors.Is(err, domain.ErrNoModel) {
				continue
			}
			return nil, err
		}

		impact, err := o.revenueImpact(ctx, serviceID, area.ID, current, pred.FinalPrice)
		if err != nil {
			return nil, err
		}

		result.OptimizedPrices = append(result.OptimizedPrices, OptimizedPrice{
			AreaID:         area.ID,
			AreaName:       area.Name,
			CurrentPrice:   round2(current),
			OptimizedPrice: round2(pred.FinalPrice),
			Confidence:     pred.Confidence,
			RevenueImpact:  impact,
		})
	}

	result.Recommendations = recommendations(result.OptimizedPrices)
	return result, nil
}

// revenueImpact estimates order and revenue changes from a price move using
// historical order counts and the fixed elasticity assumption.
func (o *Optimizer) revenueImpact(ctx context.Context, serviceID, areaID int64, current, proposed float64) (RevenueImpact, error) {
	orders, err := o.repo.CountPricingRecords(ctx, serviceID, areaID)
	if err != nil {
		return RevenueImpact{}, err
	}

	priceChange := 0.0
	if current > 0 {
		priceChange = (proposed - current) / current
	}
	demandChange := priceElasticity * priceChange
	projected := math.Max(0, float64(orders)*(1+demandChange))

	return RevenueImpact{
		CurrentOrders:      orders,
		ProjectedOrders:    round2(projected),
		RevenueChange:      round2(projected*proposed - float64(orders)*current),
		PriceChangePercent: round2(priceChange * 100),
	}, nil
}

// recommendations emits a human-readable suggestion for every area whose
// optimized price moves more than the threshold in either direction.
func recommendations(prices []OptimizedPrice) []string {
	out := []string{}
	for _, p := range prices {
		change := p.RevenueImpact.PriceChangePercent
		switch {
		case change > recommendThreshold:
			out = append(out, fmt.Sprintf(
				"Consider increasing %s prices by %.1f%% - high revenue potential",
				p.AreaName, change))
		case change < -recommendThreshold:
			out = append(out, fmt.Sprintf(
				"Consider decreasing %s prices by %.1f%% - may increase demand",
				p.AreaName, -change))
		}
	}
	return out
}
