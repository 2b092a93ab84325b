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

// GaussianPolicy is a diagonal Gaussian over actions whose mean is an MLP of the observation. The log standard
// deviation is a free parameter per action dimension, squashed into [LogStdMin, LogStdMax] so the spread can never
// collapse to zero or explode.
type GaussianPolicy struct {
	mean      *MLP
	logStdRaw []float64
	params    []float64 // the mean network's parameters followed by logStdRaw
	logStdMin float64
	logStdMax float64
}

// PolicyCache holds what Backward needs from a LogProbs call.
type PolicyCache struct {
	net     *Cache
	actions *mat.Dense
}

// NewGaussianPolicy returns a policy with the given hidden layer sizes and an initial log standard deviation of
// `initLogStd`, which must lie strictly inside [logStdMin, logStdMax].
func NewGaussianPolicy(obsSize, actionSize int, hidden []int, logStdMin, logStdMax, initLogStd float64, r *rand.Rand) (*GaussianPolicy, error) {
	if !(logStdMin < initLogStd && initLogStd < logStdMax) {
		return nil, fmt.Errorf("%w: initial log std %v is outside (%v, %v)", config.ErrInvalid, initLogStd, logStdMin, logStdMax)
	}
	sizes := append(append([]int{obsSize}, hidden...), actionSize)
	net, err := NewMLP(sizes, 0.01, r)
	if err != nil {
		return nil, err
	}

	raw := make([]float64, actionSize)
	fraction := (initLogStd - logStdMin) / (logStdMax - logStdMin)
	for i := range raw {
		raw[i] = math.Log(fraction / (1 - fraction))
	}
	return PolicyFromParams(sizes, net.Params(), raw, logStdMin, logStdMax)
}

// PolicyFromParams rebuilds a policy from saved parameters, which are copied.
func PolicyFromParams(sizes []int, meanParams, logStdRaw []float64, logStdMin, logStdMax float64) (*GaussianPolicy, error) {
	if !(logStdMin < logStdMax) {
		return nil, fmt.Errorf("%w: log std bounds are empty", config.ErrInvalid)
	}
	if len(sizes) < 2 || len(logStdRaw) != sizes[len(sizes)-1] {
		return nil, fmt.Errorf("%w: %d log std parameters for the action size", config.ErrInvalid, len(logStdRaw))
	}
	if len(meanParams) != NumParamsFor(sizes) {
		return nil, fmt.Errorf("%w: %d parameters given for a network that needs %d", config.ErrInvalid, len(meanParams), NumParamsFor(sizes))
	}

	n := len(meanParams)
	params := make([]float64, n+len(logStdRaw))
	copy(params, meanParams)
	copy(params[n:], logStdRaw)

	net, err := newMLP(sizes, params[:n])
	if err != nil {
		return nil, err
	}
	return &GaussianPolicy{
		mean:      net,
		logStdRaw: params[n:],
		params:    params,
		logStdMin: logStdMin,
		logStdMax: logStdMax,
	}, nil
}

// Params returns the flat parameter slice itself: the mean network followed by the raw log standard deviations.
func (p *GaussianPolicy) Params() []float64 {
	return p.params
}

func (p *GaussianPolicy) NumParams() int {
	return len(p.params)
}

func (p *GaussianPolicy) Sizes() []int {
	return p.mean.Sizes()
}

func (p *GaussianPolicy) MeanParams() []float64 {
	return p.mean.Params()
}

func (p *GaussianPolicy) LogStdRaw() []float64 {
	return p.logStdRaw
}

func (p *GaussianPolicy) LogStdBounds() (float64, float64) {
	return p.logStdMin, p.logStdMax
}

func (p *GaussianPolicy) ActionSize() int {
	return len(p.logStdRaw)
}

// LogStd returns the bounded log standard deviation of each action dimension.
func (p *GaussianPolicy) LogStd() []float64 {
	logStd := make([]float64, len(p.logStdRaw))
	for i, raw := range p.logStdRaw {
		logStd[i] = p.logStdMin + (p.logStdMax-p.logStdMin)*sigmoid(raw)
	}
	return logStd
}

// Act returns an action for the observation along with its log probability. In deterministic mode the action is
// the mean of the distribution; otherwise it is sampled using `r`.
func (p *GaussianPolicy) Act(obs []float64, deterministic bool, r *rand.Rand) ([]float64, float64) {
	mean := p.mean.Forward(Row(obs)).Output().RawRowView(0)
	logStd := p.LogStd()

	action := make([]float64, len(mean))
	if deterministic {
		copy(action, mean)
	} else {
		noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rng.NewSource(r)}
		for i := range action {
			action[i] = mean[i] + math.Exp(logStd[i])*noise.Rand()
		}
	}
	return action, logProb(mean, logStd, action)
}

// Entropy returns the entropy of the distribution, which does not depend on the observation.
func (p *GaussianPolicy) Entropy() float64 {
	entropy := 0.0
	for _, ls := range p.LogStd() {
		entropy += distuv.Normal{Mu: 0, Sigma: math.Exp(ls)}.Entropy()
	}
	return entropy
}

// LogProbs returns the log probability of each action, one per row, given the observations in the matching rows.
func (p *GaussianPolicy) LogProbs(obs, actions *mat.Dense) ([]float64, *PolicyCache) {
	cache := p.mean.Forward(obs)
	means := cache.Output()
	logStd := p.LogStd()

	rows, _ := obs.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = logProb(means.RawRowView(i), logStd, actions.RawRowView(i))
	}
	return out, &PolicyCache{net: cache, actions: actions}
}

// Backward adds to `grad`, laid out like Params, the gradient of a loss given its derivative with respect to each
// sample's log probability and with respect to the entropy.
func (p *GaussianPolicy) Backward(cache *PolicyCache, dLogProb []float64, dEntropy float64, grad []float64) {
	means := cache.net.Output()
	rows, cols := means.Dims()
	logStd := p.LogStd()
	variance := make([]float64, cols)
	for j := range variance {
		variance[j] = math.Exp(2 * logStd[j])
	}

	n := p.mean.NumParams()
	dMean := mat.NewDense(rows, cols, nil)
	dLogStd := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			diff := cache.actions.At(i, j) - means.At(i, j)
			dMean.Set(i, j, dLogProb[i]*diff/variance[j])
			dLogStd[j] += dLogProb[i] * (diff*diff/variance[j] - 1)
		}
	}
	p.mean.Backward(cache.net, dMean, grad[:n])

	for j, raw := range p.logStdRaw {
		s := sigmoid(raw)
		grad[n+j] += (dLogStd[j] + dEntropy) * (p.logStdMax - p.logStdMin) * s * (1 - s)
	}
}

// logProb returns the log density of a diagonal Gaussian.
func logProb(mean, logStd, action []float64) float64 {
	total := 0.0
	for i := range mean {
		total += distuv.Normal{Mu: mean[i], Sigma: math.Exp(logStd[i])}.LogProb(action[i])
	}
	return total
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
