package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/silaiwala/darzi/internal/domain"
)

// AreaPrice is one area's entry in the all-areas pricing listing.
type AreaPrice struct {
	AreaID          int64   `json:"area_id"`
	AreaName        string  `json:"area_name"`
	BasePrice       float64 `json:"base_price"`
	CalculatedPrice float64 `json:"calculated_price"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ServicePricing is the dynamic price listing for a service across areas.
type ServicePricing struct {
	ServiceID   int64       `json:"service_id"`
	ServiceName string      `json:"service_name"`
	Category    string      `json:"category"`
	Prices      []AreaPrice `json:"prices"`
}

// PriceAllAreas computes the dynamic price of a service for every active
// area, serving cached results where fresh. Areas without base pricing are
// skipped rather than failing the listing.
func (c *Calculator) PriceAllAreas(ctx context.Context, serviceID int64) (*ServicePricing, error) {
	svc, err := c.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service %d: %w", serviceID, err)
	}
	areas, err := c.repo.ListActiveAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}

	out := &ServicePricing{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Category:    svc.Category,
		Prices:      []AreaPrice{},
	}
	for _, area := range areas {
		result, err := c.CalculateCached(ctx, serviceID, area.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNoBasePricing) {
				continue
			}
			return nil, err
		}
		out.Prices = append(out.Prices, AreaPrice{
			AreaID:          area.ID,
			AreaName:        area.Name,
			BasePrice:       result.BasePrice,
			CalculatedPrice: result.CalculatedPrice,
			ConfidenceScore: result.ConfidenceScore,
		})
	}
	return out, nil
}
