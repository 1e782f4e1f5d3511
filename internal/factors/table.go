// Package factors provides the static multiplier table mapping categorical
// garment attributes to price factors.
package factors

import "strings"

// Dimension names addressable through Lookup.
const (
	DimFabricType         = "fabric_type"
	DimGarmentLength      = "garment_length"
	DimDesignComplexity   = "design_complexity"
	DimLiningRequired     = "lining_required"
	DimHandworkEmbroidery = "handwork_embroidery"
	DimTrimsAccessories   = "trims_accessories"
	DimFitAdjustments     = "fit_adjustments"
	DimServiceDifficulty  = "service_difficulty"
)

// Neutral is the factor returned for unknown dimensions or values.
const Neutral = 1.0

var table = map[string]map[string]float64{
	DimFabricType: {
		"cotton":    1.00,
		"rayon":     1.10,
		"silk":      1.30,
		"wool":      1.20,
		"linen":     1.15,
		"polyester": 0.95,
		"georgette": 1.25,
		"chiffon":   1.25,
	},
	DimGarmentLength: {
		"short":  1.00,
		"medium": 1.10,
		"long":   1.20,
	},
	DimDesignComplexity: {
		"simple":   1.00,
		"moderate": 1.15,
		"complex":  1.50,
	},
	DimLiningRequired: {
		"none":    1.00,
		"partial": 1.10,
		"full":    1.30,
	},
	DimHandworkEmbroidery: {
		"none":  1.00,
		"light": 1.10,
		"heavy": 1.40,
	},
	DimTrimsAccessories: {
		"minimal":  1.00,
		"moderate": 1.10,
		"heavy":    1.20,
	},
	DimFitAdjustments: {
		"none":     1.00,
		"minor":    1.10,
		"moderate": 1.20,
		"major":    1.50,
	},
	DimServiceDifficulty: {
		"basic":        1.00,
		"intermediate": 1.20,
		"advanced":     1.50,
		"expert":       2.00,
	},
}

// Lookup returns the multiplier for a categorical value within a dimension.
// Matching is case-insensitive; unknown dimensions or values return the
// neutral factor 1.0. Lookup is a total, pure function.
func Lookup(dimension, value string) float64 {
	dim, ok := table[dimension]
	if !ok {
		return Neutral
	}

	factor, ok := dim[strings.ToLower(value)]
	if !ok {
		return Neutral
	}
	return factor
}

// Dimensions returns the dimension names in the table.
func Dimensions() []string {
	return []string{
		DimFabricType,
		DimGarmentLength,
		DimDesignComplexity,
		DimLiningRequired,
		DimHandworkEmbroidery,
		DimTrimsAccessories,
		DimFitAdjustments,
		DimServiceDifficulty,
	}
}

// Values returns the declared values and factors for a dimension. The
// returned map is a copy.
func Values(dimension string) map[string]float64 {
	dim, ok := table[dimension]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(dim))
	for k, v := range dim {
		out[k] = v
	}
	return out
}
