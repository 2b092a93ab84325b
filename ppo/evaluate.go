package ppo

import (
	"fmt"

	"github.com/cepro/gridrl/rng"
	"github.com/cepro/gridrl/telemetry"
	"gonum.org/v1/gonum/stat"
)

type Evaluation struct {
	MeanReward float64
	StdReward  float64
	Episodes   []telemetry.EpisodeSummary
	Trace      []telemetry.StepDiagnostics // every step of the first episode
}

// Evaluate runs complete episodes on `env` with the deterministic (mean) policy. The normalizer is used as it
// stands and is not updated. The same seed gives the same episodes.
func (t *Trainer) Evaluate(env Environment, episodes int, seed int64) (Evaluation, error) {
	var eval Evaluation
	if episodes <= 0 {
		return eval, nil
	}
	if env.ObservationSize() != t.state.Normalizer.Size() || env.ActionSize() != t.policy.ActionSize() {
		return eval, fmt.Errorf("evaluation environment does not match the policy's observation or action size")
	}

	r := rng.New(seed)
	rewards := make([]float64, 0, episodes)
	for i := 0; i < episodes; i++ {
		obs := env.Reset(rng.Derive(r))
		for {
			action, _ := t.policy.Act(t.state.Normalizer.Normalize(obs), true, nil)
			result, err := env.Step(action)
			if err != nil {
				return eval, fmt.Errorf("evaluation episode %d: %w", i, err)
			}
			if i == 0 {
				eval.Trace = append(eval.Trace, result.Info)
			}
			if result.Done {
				break
			}
			obs = result.Observation
		}
		summary := env.EpisodeSummary()
		summary.RunID = t.state.RunID
		eval.Episodes = append(eval.Episodes, summary)
		rewards = append(rewards, summary.TotalReward)
	}

	eval.MeanReward, eval.StdReward = stat.PopMeanStdDev(rewards, nil)
	t.logger.Info("Evaluated policy", "episodes", episodes, "mean_reward", eval.MeanReward, "std_reward", eval.StdReward)
	return eval, nil
}
