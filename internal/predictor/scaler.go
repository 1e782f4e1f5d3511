package predictor

import (
	"errors"
	"math"
)

// StandardScaler standardizes feature columns to zero mean and unit variance
// using statistics fitted on training data. A constant column keeps a std of
// 1 so transforming it is a no-op shift.
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes per-column means and population standard deviations.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, errors.New("no rows to fit scaler")
	}
	p := len(X[0])
	means := make([]float64, p)
	stds := make([]float64, p)

	for _, row := range X {
		if len(row) != p {
			return nil, errors.New("ragged feature matrix")
		}
		for j, v := range row {
			means[j] += v
		}
	}
	n := float64(len(X))
	for j := range means {
		means[j] /= n
	}

	for _, row := range X {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}

	return &StandardScaler{Means: means, Stds: stds}, nil
}

// Transform standardizes one feature vector, returning a new slice.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Means) {
		return nil, errors.New("feature vector width does not match fitted scaler")
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Means[j]) / s.Stds[j]
	}
	return out, nil
}

// TransformAll standardizes every row of a feature matrix.
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
