package predictor

import "sort"

// LabelEncoder maps categorical string values to integer codes. Classes are
// sorted at fit time so codes are stable across runs on the same data.
// Values unseen during fitting encode to the reserved fallback bucket
// len(Classes), never an error.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitEncoder builds an encoder over the distinct values observed.
func FitEncoder(values []string) *LabelEncoder {
	seen := make(map[string]bool, len(values))
	classes := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Encode returns the integer code for a value.
func (e *LabelEncoder) Encode(value string) int {
	i := sort.SearchStrings(e.Classes, value)
	if i < len(e.Classes) && e.Classes[i] == value {
		return i
	}
	return len(e.Classes)
}

// EncodeAll encodes a column of values.
func (e *LabelEncoder) EncodeAll(values []string) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = e.Encode(v)
	}
	return out
}
