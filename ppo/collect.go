package ppo

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cepro/gridrl/nn"
	"github.com/cepro/gridrl/normalize"
	"github.com/cepro/gridrl/rng"
	"github.com/cepro/gridrl/telemetry"
	"golang.org/x/sync/errgroup"
)

// worker owns one environment and its random stream. Episodes carry on across update cycles.
type worker struct {
	index int
	env   Environment
	rng   *rand.Rand
	obs   []float64 // raw observation the next action is taken from
}

// segment is the contiguous run of transitions one worker collected in a cycle.
type segment struct {
	worker      int
	transitions []Transition
	lastValue   float64 // value of the observation after the final transition
	episodes    []telemetry.EpisodeSummary
	seen        *normalize.RunningStats // statistics of the observations seen during the segment
}

func newWorker(index int, env Environment, r *rand.Rand) *worker {
	w := &worker{
		index: index,
		env:   env,
		rng:   r,
	}
	w.obs = env.Reset(rng.Derive(r))
	return w
}

// run collects `quota` transitions with the current policy. The worker normalizes with its own copy of the shared
// statistics, updated as it goes, and records what it saw separately so that it can be merged back afterwards.
func (w *worker) run(ctx context.Context, policy *nn.GaussianPolicy, value *nn.ValueFunction, shared *normalize.RunningStats, quota int) (segment, error) {
	local := shared.Clone()
	seg := segment{
		worker:      w.index,
		transitions: make([]Transition, 0, quota),
		seen:        shared.Empty(),
	}

	for len(seg.transitions) < quota {
		if err := ctx.Err(); err != nil {
			return seg, err
		}

		local.Update(w.obs)
		seg.seen.Update(w.obs)
		obs := local.Normalize(w.obs)

		action, logProb := policy.Act(obs, false, w.rng)
		result, err := w.env.Step(action)
		if err != nil {
			return seg, err
		}

		seg.transitions = append(seg.transitions, Transition{
			Obs:     obs,
			Action:  action,
			LogProb: logProb,
			Reward:  result.Reward,
			Value:   value.Estimate(obs),
			Done:    result.Done,
		})

		w.obs = result.Observation
		if result.Done {
			summary := w.env.EpisodeSummary()
			summary.Worker = w.index
			seg.episodes = append(seg.episodes, summary)
			w.obs = w.env.Reset(rng.Derive(w.rng))
		}
	}

	if last := seg.transitions[len(seg.transitions)-1]; !last.Done {
		seg.lastValue = value.Estimate(local.Normalize(w.obs))
	}
	return seg, nil
}

// quotas splits the buffer between the workers, giving the remainder to the first ones.
func quotas(bufferSize, workers int) []int {
	q := make([]int, workers)
	for i := range q {
		q[i] = bufferSize / workers
		if i < bufferSize%workers {
			q[i]++
		}
	}
	return q
}

// collect fills the buffer. Every worker runs in its own goroutine and sends its finished segment to a single
// collector; segments are then merged in worker order so the result does not depend on scheduling.
func (t *Trainer) collect() ([]telemetry.EpisodeSummary, error) {
	t.buffer.Reset()

	g, ctx := errgroup.WithContext(context.Background())
	segments := make(chan segment)
	collected := make([]segment, len(t.workers))
	done := make(chan struct{})

	go func() {
		for seg := range segments {
			collected[seg.worker] = seg
		}
		close(done)
	}()

	for i, quota := range quotas(t.config.BufferSize, len(t.workers)) {
		w, quota := t.workers[i], quota
		g.Go(func() error {
			seg, err := w.run(ctx, t.policy, t.value, t.state.Normalizer, quota)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w.index, err)
			}
			segments <- seg
			return nil
		})
	}
	err := g.Wait()
	close(segments)
	<-done
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	var episodes []telemetry.EpisodeSummary
	for _, seg := range collected {
		t.state.Normalizer.Merge(seg.seen)

		rewards := make([]float64, len(seg.transitions))
		values := make([]float64, len(seg.transitions))
		dones := make([]bool, len(seg.transitions))
		for i, tr := range seg.transitions {
			rewards[i], values[i], dones[i] = tr.Reward, tr.Value, tr.Done
		}
		advantages, returns := GAE(rewards, values, dones, seg.lastValue, t.config.Gamma, t.config.Lambda)
		for i := range seg.transitions {
			seg.transitions[i].Advantage = advantages[i]
			seg.transitions[i].Return = returns[i]
		}
		t.buffer.Add(seg.transitions...)
		t.state.TotalSteps += len(seg.transitions)

		for _, e := range seg.episodes {
			e.RunID = t.state.RunID
			t.state.Episodes++
			episodes = append(episodes, e)
			if t.episodeSink != nil {
				sendIfNonBlocking(t.episodeSink, e, "episodes")
			}
			for _, o := range t.observers {
				o.ObserveEpisode(e)
			}
		}
	}
	return episodes, nil
}
