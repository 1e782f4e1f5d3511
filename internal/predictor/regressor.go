// Package predictor implements the trained price model: linear regressors,
// feature scaling, categorical encoding, and the persisted model artifact.
package predictor

import (
	"errors"
	"fmt"
	"math"
)

// LinearModel is a fitted linear regressor. Prediction is the dot product of
// the coefficient vector with a scaled feature vector, plus the intercept.
type LinearModel struct {
	Name         string    `json:"name"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict returns the model output for one scaled feature vector.
func (m *LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(x), len(m.Coefficients))
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * x[i]
	}
	return y, nil
}

// FitLinear fits a linear regressor by solving the normal equations with a
// Cholesky decomposition. alpha is the ridge penalty; alpha 0 is ordinary
// least squares. The bias column is never penalized, so ridge shrinks slopes
// but not the intercept.
func FitLinear(name string, X [][]float64, y []float64, alpha float64) (*LinearModel, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, errors.New("empty or mismatched training data")
	}
	p := len(X[0])

	// Design matrix with a leading bias column.
	d := p + 1
	xtx := make([][]float64, d)
	for i := range xtx {
		xtx[i] = make([]float64, d)
	}
	xty := make([]float64, d)

	for r := 0; r < n; r++ {
		row := X[r]
		if len(row) != p {
			return nil, errors.New("ragged training matrix")
		}
		// bias = 1.0 prepended implicitly
		xtx[0][0] += 1
		xty[0] += y[r]
		for i := 0; i < p; i++ {
			xtx[0][i+1] += row[i]
			xtx[i+1][0] += row[i]
			xty[i+1] += row[i] * y[r]
			for j := 0; j < p; j++ {
				xtx[i+1][j+1] += row[i] * row[j]
			}
		}
	}

	// Ridge penalty on slope terms only.
	for i := 1; i < d; i++ {
		xtx[i][i] += alpha
	}

	beta, err := choleskySolve(xtx, xty)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", name, err)
	}

	return &LinearModel{
		Name:         name,
		Intercept:    beta[0],
		Coefficients: beta[1:],
	}, nil
}

// choleskySolve solves A·x = b for symmetric positive-definite A.
func choleskySolve(A [][]float64, b []float64) ([]float64, error) {
	n := len(A)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errors.New("matrix not positive definite")
				}
				L[i][i] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// Forward substitution: L·z = b
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= L[i][k] * z[k]
		}
		z[i] = sum / L[i][i]
	}

	// Back substitution: Lᵀ·x = z
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < n; k++ {
			sum -= L[k][i] * x[k]
		}
		x[i] = sum / L[i][i]
	}
	return x, nil
}

// RSquared is the coefficient of determination of predictions against
// observed values. 1.0 is a perfect fit; can go negative for a model worse
// than predicting the mean.
func RSquared(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		m := yTrue[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// MeanAbsoluteError is the mean of |observed − predicted|.
func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}
