package ppo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// GAE computes generalized advantage estimates and value targets for a contiguous segment of transitions, working
// backwards in time. `lastValue` is the value estimate of the observation that follows the final transition, used
// unless that transition ended an episode.
func GAE(rewards, values []float64, dones []bool, lastValue, gamma, lambda float64) ([]float64, []float64) {
	n := len(rewards)
	advantages := make([]float64, n)
	returns := make([]float64, n)

	next := 0.0
	nextValue := lastValue
	for t := n - 1; t >= 0; t-- {
		notDone := 1.0
		if dones[t] {
			notDone = 0
		}
		delta := rewards[t] + gamma*nextValue*notDone - values[t]
		next = delta + gamma*lambda*notDone*next
		advantages[t] = next
		returns[t] = next + values[t]
		nextValue = values[t]
	}
	return advantages, returns
}

// StandardizeAdvantages returns the advantages shifted and scaled to zero mean and unit variance, along with the
// largest magnitude seen in units of standard deviations. Advantages that are all (numerically) equal carry no
// signal and are returned as zeros.
func StandardizeAdvantages(advantages []float64) ([]float64, float64) {
	out := make([]float64, len(advantages))
	if len(advantages) < 2 {
		return out, 0
	}
	mean, std := stat.PopMeanStdDev(advantages, nil)
	if !(std > 1e-8*math.Max(1, math.Abs(mean))) {
		return out, 0
	}
	maxAbs := 0.0
	for i, a := range advantages {
		out[i] = (a - mean) / std
		maxAbs = math.Max(maxAbs, math.Abs(out[i]))
	}
	return out, maxAbs
}

// ClippedSurrogate returns min(ratio*advantage, clip(ratio, 1-epsilon, 1+epsilon)*advantage).
func ClippedSurrogate(ratio, advantage, epsilon float64) float64 {
	clipped := math.Max(1-epsilon, math.Min(1+epsilon, ratio))
	return math.Min(ratio*advantage, clipped*advantage)
}

// surrogateGradient returns the derivative of ClippedSurrogate with respect to the ratio: the advantage while the
// unclipped term is the smaller one, and zero once clipping takes over.
func surrogateGradient(ratio, advantage, epsilon float64) float64 {
	clipped := math.Max(1-epsilon, math.Min(1+epsilon, ratio))
	if ratio*advantage <= clipped*advantage {
		return advantage
	}
	return 0
}
