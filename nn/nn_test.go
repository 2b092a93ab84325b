package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cepro/gridrl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(r *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// numericalGradient estimates the gradient of `loss` with respect to `params` by central differences.
func numericalGradient(params []float64, loss func() float64) []float64 {
	const h = 1e-6
	grad := make([]float64, len(params))
	for i := range params {
		original := params[i]
		params[i] = original + h
		plus := loss()
		params[i] = original - h
		minus := loss()
		params[i] = original
		grad[i] = (plus - minus) / (2 * h)
	}
	return grad
}

func TestMLPGradient(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	m, err := NewMLP([]int{3, 5, 4, 2}, 1, r)
	require.NoError(t, err)
	x := randomBatch(r, 6, 3)
	target := randomBatch(r, 6, 2)

	// loss = 0.5 * sum((y - target)^2)
	loss := func() float64 {
		out := m.Forward(x).Output()
		total := 0.0
		for i := 0; i < 6; i++ {
			for j := 0; j < 2; j++ {
				d := out.At(i, j) - target.At(i, j)
				total += 0.5 * d * d
			}
		}
		return total
	}

	cache := m.Forward(x)
	var dOut mat.Dense
	dOut.Sub(cache.Output(), target)
	grad := make([]float64, m.NumParams())
	m.Backward(cache, &dOut, grad)

	assert.InDeltaSlice(t, numericalGradient(m.Params(), loss), grad, 1e-6)
}

func TestMLPRejectsBadShapes(t *testing.T) {
	_, err := NewMLP([]int{3}, 1, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = NewMLP([]int{3, 0, 1}, 1, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = MLPFromParams([]int{2, 2}, make([]float64, 5))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestMLPParamsAreShared(t *testing.T) {
	m, err := NewMLP([]int{1, 1}, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	params := m.Params()
	params[0] = 2 // weight
	params[1] = 3 // bias
	assert.Equal(t, 2*4.0+3, m.Forward(Row([]float64{4})).Output().At(0, 0))
}

func newTestPolicy(t *testing.T, seed int64) *GaussianPolicy {
	p, err := NewGaussianPolicy(4, 3, []int{8, 8}, -5, 1, -0.5, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return p
}

func TestPolicyGradient(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	p := newTestPolicy(t, 2)
	// move away from the near-zero initial output layer so every term matters
	for i := range p.Params() {
		p.Params()[i] += 0.3 * r.NormFloat64()
	}
	obs := randomBatch(r, 5, 4)
	actions := randomBatch(r, 5, 3)
	weights := []float64{0.5, -1, 2, 0.1, -0.7}
	const entropyWeight = -0.3

	// loss = sum(w_i * logp_i) + entropyWeight * entropy
	loss := func() float64 {
		logProbs, _ := p.LogProbs(obs, actions)
		total := entropyWeight * p.Entropy()
		for i, lp := range logProbs {
			total += weights[i] * lp
		}
		return total
	}

	_, cache := p.LogProbs(obs, actions)
	grad := make([]float64, p.NumParams())
	p.Backward(cache, weights, entropyWeight, grad)

	assert.InDeltaSlice(t, numericalGradient(p.Params(), loss), grad, 1e-5)
}

func TestValueGradient(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	v, err := NewValueFunction(4, []int{6}, r)
	require.NoError(t, err)
	obs := randomBatch(r, 7, 4)
	returns := []float64{1, -2, 0.5, 3, 0, -1, 2}

	loss := func() float64 {
		estimates, _ := v.EstimateBatch(obs)
		total := 0.0
		for i, e := range estimates {
			total += (e - returns[i]) * (e - returns[i]) / 7
		}
		return total
	}

	estimates, cache := v.EstimateBatch(obs)
	dEstimate := make([]float64, len(estimates))
	for i, e := range estimates {
		dEstimate[i] = 2 * (e - returns[i]) / 7
	}
	grad := make([]float64, v.NumParams())
	v.Backward(cache, dEstimate, grad)

	assert.InDeltaSlice(t, numericalGradient(v.Params(), loss), grad, 1e-6)
	assert.InDelta(t, estimates[2], v.Estimate(obs.RawRowView(2)), 1e-12)
}

func TestLogStdIsBounded(t *testing.T) {
	p := newTestPolicy(t, 4)
	assert.InDeltaSlice(t, []float64{-0.5, -0.5, -0.5}, p.LogStd(), 1e-12)

	raw := p.LogStdRaw()
	raw[0] = 1e6
	raw[1] = -1e6
	raw[2] = math.Inf(1)
	logStd := p.LogStd()
	assert.Equal(t, 1.0, logStd[0])
	assert.Equal(t, -5.0, logStd[1])
	assert.Equal(t, 1.0, logStd[2])

	_, err := NewGaussianPolicy(4, 3, []int{8}, -5, 1, 1, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestAct(t *testing.T) {
	p := newTestPolicy(t, 5)
	obs := []float64{0.1, -0.2, 0.3, 1}

	mean, logProbMean := p.Act(obs, true, nil)
	again, _ := p.Act(obs, true, nil)
	assert.Equal(t, mean, again)
	expected := 0.0
	for range mean {
		expected += -(-0.5) - 0.5*math.Log(2*math.Pi)
	}
	assert.InDelta(t, expected, logProbMean, 1e-9)

	first, firstLogProb := p.Act(obs, false, rand.New(rand.NewSource(9)))
	second, secondLogProb := p.Act(obs, false, rand.New(rand.NewSource(9)))
	assert.Equal(t, first, second)
	assert.Equal(t, firstLogProb, secondLogProb)
	assert.NotEqual(t, mean, first)
	assert.Less(t, firstLogProb, logProbMean)

	logProbs, _ := p.LogProbs(Row(obs), Row(first))
	assert.InDelta(t, firstLogProb, logProbs[0], 1e-12)
}

func TestEntropy(t *testing.T) {
	p := newTestPolicy(t, 6)
	assert.InDelta(t, 3*(-0.5+0.5*math.Log(2*math.Pi*math.E)), p.Entropy(), 1e-12)
}

func TestPolicyFromParams(t *testing.T) {
	p := newTestPolicy(t, 7)
	lo, hi := p.LogStdBounds()
	restored, err := PolicyFromParams(p.Sizes(), p.MeanParams(), p.LogStdRaw(), lo, hi)
	require.NoError(t, err)

	obs := []float64{1, 2, 3, 4}
	a, _ := p.Act(obs, true, nil)
	b, _ := restored.Act(obs, true, nil)
	assert.Equal(t, a, b)

	restored.Params()[0] += 1
	assert.NotEqual(t, p.Params()[0], restored.Params()[0])

	_, err = PolicyFromParams(p.Sizes(), p.MeanParams(), []float64{0}, lo, hi)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestAdamMinimisesQuadratic(t *testing.T) {
	params := []float64{5, -3}
	adam := NewAdam(2, 0.1)
	for i := 0; i < 2000; i++ {
		grad := []float64{2 * (params[0] - 1), 2 * (params[1] + 2)}
		require.NoError(t, adam.Step(params, grad))
	}
	assert.InDeltaSlice(t, []float64{1, -2}, params, 1e-3)
	assert.Equal(t, 2000, adam.Steps())
}

func TestAdamZeroGradientLeavesParams(t *testing.T) {
	params := []float64{0.25, -1.5}
	adam := NewAdam(2, 0.1)
	require.NoError(t, adam.Step(params, []float64{0, 0}))
	assert.Equal(t, []float64{0.25, -1.5}, params)
}

func TestAdamRefusesNonFiniteStep(t *testing.T) {
	params := []float64{1, 2}
	adam := NewAdam(2, 0.1)
	require.NoError(t, adam.Step(params, []float64{0.5, 0.5}))
	before := append([]float64(nil), params...)
	m, v, steps := adam.State()

	err := adam.Step(params, []float64{math.NaN(), 0.1})
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.Equal(t, before, params)
	m2, v2, steps2 := adam.State()
	assert.Equal(t, m, m2)
	assert.Equal(t, v, v2)
	assert.Equal(t, steps, steps2)
}
