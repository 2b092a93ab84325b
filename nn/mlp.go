// Package nn holds the small fully connected networks used by the policy and the value function, with hand-derived
// gradients.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/rng"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MLP is a multi-layer perceptron with tanh hidden layers and a linear output. All weights and biases live in one
// flat parameter slice, which the layer matrices are views onto, so that an optimizer can treat the network as a
// single vector.
type MLP struct {
	sizes   []int
	params  []float64
	weights []*mat.Dense // weights[l] is sizes[l] x sizes[l+1]
	biases  [][]float64
}

// Cache holds the activations from a forward pass, needed by Backward.
type Cache struct {
	activations []*mat.Dense // activations[0] is the input, the last is the output
}

// Output returns the network output for the batch.
func (c *Cache) Output() *mat.Dense {
	return c.activations[len(c.activations)-1]
}

// NumParamsFor returns the number of parameters of an MLP with the given layer sizes.
func NumParamsFor(sizes []int) int {
	n := 0
	for l := 0; l+1 < len(sizes); l++ {
		n += sizes[l]*sizes[l+1] + sizes[l+1]
	}
	return n
}

// NewMLP returns a network with Glorot-uniform weights and zero biases. The final layer's weights are scaled by
// `outputGain`, small values start the network close to a constant output.
func NewMLP(sizes []int, outputGain float64, r *rand.Rand) (*MLP, error) {
	m, err := newMLP(sizes, make([]float64, NumParamsFor(sizes)))
	if err != nil {
		return nil, err
	}
	src := rng.NewSource(r)
	for l, w := range m.weights {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in+out))
		if l == len(m.weights)-1 {
			limit *= outputGain
		}
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
		for i := 0; i < in; i++ {
			for j := 0; j < out; j++ {
				w.Set(i, j, dist.Rand())
			}
		}
	}
	return m, nil
}

// MLPFromParams returns a network over a copy of the given parameters.
func MLPFromParams(sizes []int, params []float64) (*MLP, error) {
	if len(params) != NumParamsFor(sizes) {
		return nil, fmt.Errorf("%w: %d parameters given for a network that needs %d", config.ErrInvalid, len(params), NumParamsFor(sizes))
	}
	return newMLP(sizes, append([]float64(nil), params...))
}

// newMLP lays the network out over `params`, which must have the right length and is used without copying.
func newMLP(sizes []int, params []float64) (*MLP, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: a network needs input and output sizes", config.ErrInvalid)
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: layer sizes must be positive", config.ErrInvalid)
		}
	}

	m := &MLP{
		sizes:  append([]int(nil), sizes...),
		params: params,
	}
	offset := 0
	for l := 0; l+1 < len(sizes); l++ {
		in, out := sizes[l], sizes[l+1]
		m.weights = append(m.weights, mat.NewDense(in, out, params[offset:offset+in*out]))
		offset += in * out
		m.biases = append(m.biases, params[offset:offset+out])
		offset += out
	}
	return m, nil
}

func (m *MLP) Sizes() []int {
	return append([]int(nil), m.sizes...)
}

func (m *MLP) NumParams() int {
	return len(m.params)
}

// Params returns the parameter slice itself. Writing to it changes the network.
func (m *MLP) Params() []float64 {
	return m.params
}

func (m *MLP) InputSize() int {
	return m.sizes[0]
}

func (m *MLP) OutputSize() int {
	return m.sizes[len(m.sizes)-1]
}

// Forward evaluates the network on a batch, one sample per row of `x`.
func (m *MLP) Forward(x *mat.Dense) *Cache {
	rows, _ := x.Dims()
	cache := &Cache{activations: []*mat.Dense{x}}
	a := x
	last := len(m.weights) - 1
	for l, w := range m.weights {
		_, out := w.Dims()
		z := mat.NewDense(rows, out, nil)
		z.Mul(a, w)
		b := m.biases[l]
		hidden := l < last
		z.Apply(func(i, j int, v float64) float64 {
			v += b[j]
			if hidden {
				return math.Tanh(v)
			}
			return v
		}, z)
		cache.activations = append(cache.activations, z)
		a = z
	}
	return cache
}

// Backward adds the gradient of a loss to `grad`, which is laid out like Params, given the gradient of the loss with
// respect to the network output for each sample in the batch of the forward pass.
func (m *MLP) Backward(cache *Cache, dOut *mat.Dense, grad []float64) {
	delta := mat.DenseCopyOf(dOut)
	offsets := m.offsets()

	for l := len(m.weights) - 1; l >= 0; l-- {
		in, out := m.sizes[l], m.sizes[l+1]
		input := cache.activations[l]

		gw := mat.NewDense(in, out, grad[offsets[l]:offsets[l]+in*out])
		var dw mat.Dense
		dw.Mul(input.T(), delta)
		gw.Add(gw, &dw)

		gb := grad[offsets[l]+in*out : offsets[l]+in*out+out]
		rows, _ := delta.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < out; j++ {
				gb[j] += delta.At(i, j)
			}
		}

		if l == 0 {
			break
		}
		var dIn mat.Dense
		dIn.Mul(delta, m.weights[l].T())
		dIn.Apply(func(i, j int, v float64) float64 {
			a := input.At(i, j)
			return v * (1 - a*a)
		}, &dIn)
		delta = &dIn
	}
}

// offsets returns the start of each layer's weights in the parameter slice.
func (m *MLP) offsets() []int {
	offsets := make([]int, len(m.weights))
	offset := 0
	for l := range m.weights {
		offsets[l] = offset
		offset += m.sizes[l]*m.sizes[l+1] + m.sizes[l+1]
	}
	return offsets
}

// Row returns a 1 x n matrix holding a copy of `x`.
func Row(x []float64) *mat.Dense {
	return mat.NewDense(1, len(x), append([]float64(nil), x...))
}

// Rows stacks the given vectors into a matrix, one per row.
func Rows(xs [][]float64) *mat.Dense {
	if len(xs) == 0 {
		return nil
	}
	cols := len(xs[0])
	data := make([]float64, 0, len(xs)*cols)
	for _, x := range xs {
		data = append(data, x...)
	}
	return mat.NewDense(len(xs), cols, data)
}
