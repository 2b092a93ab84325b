package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ValueFunction estimates the discounted return from an observation.
type ValueFunction struct {
	net *MLP
}

func NewValueFunction(obsSize int, hidden []int, r *rand.Rand) (*ValueFunction, error) {
	sizes := append(append([]int{obsSize}, hidden...), 1)
	net, err := NewMLP(sizes, 1, r)
	if err != nil {
		return nil, err
	}
	return &ValueFunction{net: net}, nil
}

// ValueFromParams rebuilds a value function from saved parameters, which are copied.
func ValueFromParams(sizes []int, params []float64) (*ValueFunction, error) {
	net, err := MLPFromParams(sizes, params)
	if err != nil {
		return nil, err
	}
	return &ValueFunction{net: net}, nil
}

func (v *ValueFunction) Params() []float64 {
	return v.net.Params()
}

func (v *ValueFunction) NumParams() int {
	return v.net.NumParams()
}

func (v *ValueFunction) Sizes() []int {
	return v.net.Sizes()
}

func (v *ValueFunction) Estimate(obs []float64) float64 {
	return v.net.Forward(Row(obs)).Output().At(0, 0)
}

// EstimateBatch returns an estimate per row of `obs`, with the cache needed by Backward.
func (v *ValueFunction) EstimateBatch(obs *mat.Dense) ([]float64, *Cache) {
	cache := v.net.Forward(obs)
	return mat.Col(nil, 0, cache.Output()), cache
}

// Backward adds to `grad` the gradient of a loss given its derivative with respect to each estimate.
func (v *ValueFunction) Backward(cache *Cache, dEstimate []float64, grad []float64) {
	v.net.Backward(cache, mat.NewDense(len(dEstimate), 1, append([]float64(nil), dEstimate...)), grad)
}
