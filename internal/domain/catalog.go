// Package domain defines the core types and interfaces for Darzi.
package domain

import "time"

// Difficulty levels for tailoring services.
const (
	DifficultyBasic        = "basic"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
	DifficultyExpert       = "expert"
)

// Service is a catalog entry for a tailoring service.
type Service struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Difficulty    string    `json:"difficulty"` // basic|intermediate|advanced|expert
	EstimatedDays int       `json:"estimatedDays"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PricingArea is a geographic pricing zone with its own cost multiplier.
type PricingArea struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	IsActive   bool    `json:"isActive"`
}

// ServicePricing is the base price for a service in an area.
type ServicePricing struct {
	ServiceID int64   `json:"serviceId"`
	AreaID    int64   `json:"areaId"`
	BasePrice float64 `json:"basePrice"`
}

// ComplexityScore derives a 1.0–5.0 complexity score from a service's
// difficulty and estimated turnaround.
func (s *Service) ComplexityScore() float64 {
	scores := map[string]float64{
		DifficultyBasic:        1.0,
		DifficultyIntermediate: 2.0,
		DifficultyAdvanced:     3.0,
		DifficultyExpert:       4.0,
	}

	score, ok := scores[s.Difficulty]
	if !ok {
		score = 1.0
	}

	if s.EstimatedDays > 7 {
		score += 0.5
	}

	if score > 5.0 {
		score = 5.0
	}
	return score
}

// IsHighDifficulty reports whether the service requires advanced skill.
func (s *Service) IsHighDifficulty() bool {
	return s.Difficulty == DifficultyAdvanced || s.Difficulty == DifficultyExpert
}
