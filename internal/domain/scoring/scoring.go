// Package scoring applies fitted logistic-regression parameters to encoded
// feature vectors.
package scoring

import (
	"fmt"
	"math"
)

// Threshold is the probability at or above which a passenger is predicted
// to survive. It is equivalent to a linear score of zero.
const Threshold = 0.5

// Result holds both the linear predictor and its sigmoid.
type Result struct {
	Linear      float64
	Probability float64
}

// Survived reports whether the probability clears Threshold.
func (r Result) Survived() bool { return r.Probability >= Threshold }

// Model is an immutable logistic-regression model. Once built it is never
// mutated, so any number of goroutines may score with it concurrently.
type Model struct {
	weights []float64
	bias    float64
}

// New builds a Model from fitted parameters. weights is copied.
func New(weights []float64, bias float64) (*Model, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidModel)
	}
	if !finite(bias) {
		return nil, fmt.Errorf("%w: bias is %v", ErrInvalidModel, bias)
	}
	w := make([]float64, len(weights))
	for i, x := range weights {
		if !finite(x) {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidModel, i, x)
		}
		w[i] = x
	}
	return &Model{weights: w, bias: bias}, nil
}

// Dim returns the number of features the model expects.
func (m *Model) Dim() int { return len(m.weights) }

// Weights returns a copy of the weights.
func (m *Model) Weights() []float64 {
	out := make([]float64, len(m.weights))
	copy(out, m.weights)
	return out
}

// Bias returns the intercept.
func (m *Model) Bias() float64 { return m.bias }

// Linear computes z = bias + sum(w[i]*x[i]). The sum is accumulated left to
// right starting from the bias so results are reproducible bit for bit.
func (m *Model) Linear(x []float64) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("%w: got %d features, model has %d weights",
			ErrDimensionMismatch, len(x), len(m.weights))
	}
	z := m.bias
	for i, w := range m.weights {
		// The conversion forces rounding of the product and stops the
		// compiler from fusing it into an FMA on arm64 and friends.
		z += float64(w * x[i])
	}
	return z, nil
}

// Score returns the survival probability for x.
func (m *Model) Score(x []float64) (float64, error) {
	z, err := m.Linear(x)
	if err != nil {
		return 0, err
	}
	return Sigmoid(z), nil
}

// Evaluate returns the linear predictor and probability for x.
func (m *Model) Evaluate(x []float64) (Result, error) {
	z, err := m.Linear(x)
	if err != nil {
		return Result{}, err
	}
	return Result{Linear: z, Probability: Sigmoid(z)}, nil
}

// Sigmoid is the logistic function 1/(1+e^-z). Sigmoid(0) is exactly 0.5.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
