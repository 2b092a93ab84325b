package controller

import (
	"fmt"

	"github.com/cepro/gridrl/microgrid"
	"github.com/cepro/gridrl/rng"
	"github.com/cepro/gridrl/telemetry"
	"gonum.org/v1/gonum/stat"
)

type Evaluation struct {
	MeanReward float64
	StdReward  float64
	Episodes   []telemetry.EpisodeSummary
}

// Evaluate runs complete episodes on `env` under the controller. Episode seeds are drawn from `seed` the same way
// the trainer's evaluation draws them, so both face the same episodes.
func (c *Controller) Evaluate(env *microgrid.Environment, episodes int, seed int64) (Evaluation, error) {
	var eval Evaluation
	if episodes <= 0 {
		return eval, nil
	}
	if env.ActionSize() != len(c.limits.Storage)+3 {
		return eval, fmt.Errorf("environment has %d storage units, the controller has limits for %d", env.ActionSize()-3, len(c.limits.Storage))
	}

	r := rng.New(seed)
	rewards := make([]float64, 0, episodes)
	for i := 0; i < episodes; i++ {
		env.Reset(rng.Derive(r))
		for {
			result, err := env.Step(c.Action(env.Site()))
			if err != nil {
				return eval, fmt.Errorf("baseline episode %d: %w", i, err)
			}
			if result.Done {
				break
			}
		}
		summary := env.EpisodeSummary()
		eval.Episodes = append(eval.Episodes, summary)
		rewards = append(rewards, summary.TotalReward)
	}

	eval.MeanReward, eval.StdReward = stat.PopMeanStdDev(rewards, nil)
	c.logger.Info("Evaluated baseline", "episodes", episodes, "mean_reward", eval.MeanReward, "std_reward", eval.StdReward)
	return eval, nil
}
