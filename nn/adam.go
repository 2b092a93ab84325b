package nn

import (
	"errors"
	"math"
)

// ErrNonFinite is returned when a step would write a NaN or infinite value.
var ErrNonFinite = errors.New("non-finite value")

// Adam is the Adam optimizer over a flat parameter slice.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m []float64
	v []float64
	t int
}

func NewAdam(size int, learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make([]float64, size),
		v:            make([]float64, size),
	}
}

// Steps returns the number of committed steps.
func (a *Adam) Steps() int {
	return a.t
}

// Step moves `params` against `grad`. The step is computed in full before anything is written: if any moment or
// parameter would become non-finite, ErrNonFinite is returned and neither the parameters nor the optimizer state
// change.
func (a *Adam) Step(params, grad []float64) error {
	if len(params) != len(a.m) || len(grad) != len(a.m) {
		return errors.New("parameter and gradient sizes do not match the optimizer")
	}

	t := a.t + 1
	m := make([]float64, len(a.m))
	v := make([]float64, len(a.v))
	next := make([]float64, len(params))
	correction1 := 1 - math.Pow(a.Beta1, float64(t))
	correction2 := 1 - math.Pow(a.Beta2, float64(t))

	for i, g := range grad {
		m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		next[i] = params[i] - a.LearningRate*(m[i]/correction1)/(math.Sqrt(v[i]/correction2)+a.Epsilon)
		if !isFinite(m[i]) || !isFinite(v[i]) || !isFinite(next[i]) {
			return ErrNonFinite
		}
	}

	copy(a.m, m)
	copy(a.v, v)
	copy(params, next)
	a.t = t
	return nil
}

// State returns copies of the optimizer moments and step count.
func (a *Adam) State() ([]float64, []float64, int) {
	return append([]float64(nil), a.m...), append([]float64(nil), a.v...), a.t
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Restore puts back moments and a step count previously taken with State.
func (a *Adam) Restore(m, v []float64, t int) error {
	if len(m) != len(a.m) || len(v) != len(a.v) {
		return errors.New("moment sizes do not match the optimizer")
	}
	copy(a.m, m)
	copy(a.v, v)
	a.t = t
	return nil
}
