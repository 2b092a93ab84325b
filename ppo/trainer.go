// Package ppo trains the Gaussian policy and value function with proximal policy optimisation: experience is
// collected by independent workers, advantages are estimated with GAE, and the networks are updated over several
// epochs of shuffled minibatches using the clipped surrogate objective.
package ppo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/cepro/gridrl/checkpoint"
	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/microgrid"
	"github.com/cepro/gridrl/nn"
	"github.com/cepro/gridrl/normalize"
	"github.com/cepro/gridrl/rng"
	"github.com/cepro/gridrl/telemetry"
	"github.com/google/uuid"
)

type Config = config.TrainingConfig

// ErrNumericalInstability is returned when a loss, gradient or parameter becomes non-finite during an update. The
// update step that found it is discarded.
var ErrNumericalInstability = errors.New("numerical instability")

// Environment is the part of microgrid.Environment the trainer drives.
type Environment interface {
	ObservationSize() int
	ActionSize() int
	Reset(seed int64) []float64
	Step(action []float64) (microgrid.StepResult, error)
	EpisodeSummary() telemetry.EpisodeSummary
}

// EnvFactory returns a new, independent environment. It is called once per worker.
type EnvFactory func() (Environment, error)

// Observer is told about every completed episode and every update, for example to export metrics.
type Observer interface {
	ObserveEpisode(telemetry.EpisodeSummary)
	ObserveUpdate(telemetry.UpdateReport)
}

// RunState is the position of a training run. It is everything, apart from the networks, that a checkpoint needs
// to resume from.
type RunState struct {
	RunID          uuid.UUID
	Iteration      int // completed update cycles
	TotalSteps     int
	Episodes       int
	BestMeanReward float64 // -Inf until a cycle has completed an episode
	Normalizer     *normalize.RunningStats
}

type Option func(*Trainer)

// WithEpisodeSink sends a summary of every completed episode onto `ch`. Summaries are dropped if `ch` is full.
func WithEpisodeSink(ch chan<- telemetry.EpisodeSummary) Option {
	return func(t *Trainer) { t.episodeSink = ch }
}

// WithUpdateSink sends a report of every update onto `ch`. Reports are dropped if `ch` is full.
func WithUpdateSink(ch chan<- telemetry.UpdateReport) Option {
	return func(t *Trainer) { t.updateSink = ch }
}

// WithObserver adds an observer. Observers are called from the goroutine running the trainer, in the order given.
func WithObserver(o Observer) Option {
	return func(t *Trainer) { t.observers = append(t.observers, o) }
}

// WithCheckpoint resumes from a saved checkpoint instead of freshly initialised networks.
func WithCheckpoint(c checkpoint.Checkpoint) Option {
	return func(t *Trainer) { t.resume = &c }
}

// Trainer runs the collect, compute advantages and update cycle. The policy and value parameters are only written
// by the goroutine calling Iterate or Train; collection workers only read them.
type Trainer struct {
	config Config
	state  RunState

	policy    *nn.GaussianPolicy
	value     *nn.ValueFunction
	policyOpt *nn.Adam
	valueOpt  *nn.Adam

	workers []*worker
	buffer  *Buffer
	rng     *rand.Rand // minibatch shuffling

	episodeSink chan<- telemetry.EpisodeSummary
	updateSink  chan<- telemetry.UpdateReport
	observers   []Observer
	resume      *checkpoint.Checkpoint

	logger *slog.Logger
}

// New validates the configuration, builds one environment per worker and initialises the networks from cfg.Seed,
// or from a checkpoint if one is given.
func New(cfg Config, newEnv EnvFactory, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		config: cfg,
		buffer: NewBuffer(cfg.BufferSize),
		logger: slog.Default().With("component", "trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}

	root := rng.New(cfg.Seed)
	t.rng = rng.New(rng.Derive(root))
	netRng := rng.New(rng.Derive(root))

	var obsSize, actionSize int
	for i := 0; i < cfg.Workers; i++ {
		env, err := newEnv()
		if err != nil {
			return nil, fmt.Errorf("create environment for worker %d: %w", i, err)
		}
		if i == 0 {
			obsSize, actionSize = env.ObservationSize(), env.ActionSize()
		} else if env.ObservationSize() != obsSize || env.ActionSize() != actionSize {
			return nil, fmt.Errorf("%w: worker environments disagree on observation or action size", config.ErrInvalid)
		}
		t.workers = append(t.workers, newWorker(i, env, rng.New(rng.Derive(root))))
	}

	if t.resume != nil {
		if err := t.restore(*t.resume, obsSize, actionSize); err != nil {
			return nil, err
		}
	} else {
		var err error
		t.policy, err = nn.NewGaussianPolicy(obsSize, actionSize, cfg.HiddenSizes, cfg.LogStdMin, cfg.LogStdMax, cfg.InitLogStd, netRng)
		if err != nil {
			return nil, err
		}
		t.value, err = nn.NewValueFunction(obsSize, cfg.HiddenSizes, netRng)
		if err != nil {
			return nil, err
		}
		normalizer, err := normalize.New(obsSize, cfg.ObsEpsilon, cfg.ObsClip)
		if err != nil {
			return nil, err
		}
		t.state = RunState{
			RunID:          uuid.New(),
			BestMeanReward: math.Inf(-1),
			Normalizer:     normalizer,
		}
	}
	t.policyOpt = nn.NewAdam(t.policy.NumParams(), cfg.LearningRate)
	t.valueOpt = nn.NewAdam(t.value.NumParams(), cfg.LearningRate)

	return t, nil
}

func (t *Trainer) restore(c checkpoint.Checkpoint, obsSize, actionSize int) error {
	policy, value, normalizer, err := c.Restore()
	if err != nil {
		return err
	}
	if policy.Sizes()[0] != obsSize || policy.ActionSize() != actionSize {
		return fmt.Errorf("%w: checkpoint was trained on a different observation or action size", config.ErrInvalid)
	}
	t.policy = policy
	t.value = value
	t.state = RunState{
		RunID:          c.RunID,
		Iteration:      c.Iteration,
		TotalSteps:     c.TotalSteps,
		Episodes:       c.Episodes,
		BestMeanReward: math.Inf(-1),
		Normalizer:     normalizer,
	}
	if c.BestMeanReward != nil {
		t.state.BestMeanReward = *c.BestMeanReward
	}
	t.logger.Info("Resumed from checkpoint", "checkpoint_id", c.ID, "run_id", c.RunID, "iteration", c.Iteration)
	return nil
}

// State returns the current run state. The normalizer is shared, not copied.
func (t *Trainer) State() RunState {
	return t.state
}

func (t *Trainer) Policy() *nn.GaussianPolicy {
	return t.policy
}

func (t *Trainer) Value() *nn.ValueFunction {
	return t.value
}

// Checkpoint captures the networks, normalizer and run state.
func (t *Trainer) Checkpoint() checkpoint.Checkpoint {
	c := checkpoint.Capture(t.state.RunID, t.policy, t.value, t.state.Normalizer)
	c.Iteration = t.state.Iteration
	c.TotalSteps = t.state.TotalSteps
	c.Episodes = t.state.Episodes
	if !math.IsInf(t.state.BestMeanReward, -1) {
		best := t.state.BestMeanReward
		c.BestMeanReward = &best
	}
	return c
}

// Iterate runs one full cycle: it fills the buffer, computes advantages and updates the networks. The buffer is
// empty again when it returns.
func (t *Trainer) Iterate() (telemetry.UpdateReport, error) {
	episodes, err := t.collect()
	if err != nil {
		t.buffer.Reset()
		return telemetry.UpdateReport{}, err
	}

	report, err := t.update()
	if err != nil {
		return report, err
	}
	t.state.Iteration++

	report.ID = uuid.New()
	report.RunID = t.state.RunID
	report.Time = time.Now()
	report.Iteration = t.state.Iteration
	report.TotalSteps = t.state.TotalSteps
	report.Episodes = len(episodes)
	if len(episodes) > 0 {
		total := 0.0
		for _, e := range episodes {
			total += e.TotalReward
		}
		report.MeanEpisodeReward = total / float64(len(episodes))
	}

	t.logger.Info("Updated policy",
		"iteration", report.Iteration,
		"total_steps", report.TotalSteps,
		"episodes", report.Episodes,
		"mean_episode_reward", report.MeanEpisodeReward,
		"policy_loss", report.PolicyLoss,
		"value_loss", report.ValueLoss,
		"entropy", report.Entropy,
		"approx_kl", report.ApproxKL,
		"clip_fraction", report.ClipFraction,
		"grad_norm", report.GradNorm,
		"learning_rate", report.LearningRate,
	)
	if report.Entropy < t.config.EntropyWarnBelow {
		t.logger.Warn("Policy entropy is collapsing", "entropy", report.Entropy, "threshold", t.config.EntropyWarnBelow)
	}
	if t.config.AdvantageWarnAbove > 0 && report.AdvantageMaxAbs > t.config.AdvantageWarnAbove {
		t.logger.Warn("Advantage outliers", "max_abs", report.AdvantageMaxAbs, "threshold", t.config.AdvantageWarnAbove)
	}

	if t.updateSink != nil {
		sendIfNonBlocking(t.updateSink, report, "updates")
	}
	for _, o := range t.observers {
		o.ObserveUpdate(report)
	}
	return report, nil
}

// Train runs update cycles until the configured number of iterations is reached or `ctx` is cancelled. Cancellation
// is only acted on between cycles, and a final checkpoint is written either way. A checkpoint is never written after
// a failed cycle.
func (t *Trainer) Train(ctx context.Context) error {
	t.logger.Info("Starting training", "run_id", t.state.RunID, "iteration", t.state.Iteration, "iterations", t.config.Iterations, "workers", t.config.Workers)

	for t.state.Iteration < t.config.Iterations {
		select {
		case <-ctx.Done():
			t.logger.Info("Stopping training", "iteration", t.state.Iteration)
			return t.saveCheckpoint("latest.json")
		default:
		}

		report, err := t.Iterate()
		if err != nil {
			return err
		}

		if report.Episodes > 0 && report.MeanEpisodeReward > t.state.BestMeanReward {
			t.state.BestMeanReward = report.MeanEpisodeReward
			if err := t.saveCheckpoint("best.json"); err != nil {
				return err
			}
		}
		if t.config.CheckpointEvery > 0 && t.state.Iteration%t.config.CheckpointEvery == 0 {
			if err := t.saveCheckpoint(fmt.Sprintf("checkpoint-%06d.json", t.state.Iteration)); err != nil {
				return err
			}
			if err := t.saveCheckpoint("latest.json"); err != nil {
				return err
			}
		}
	}

	t.logger.Info("Finished training", "iteration", t.state.Iteration, "total_steps", t.state.TotalSteps, "best_mean_reward", t.state.BestMeanReward)
	return t.saveCheckpoint("latest.json")
}

func (t *Trainer) saveCheckpoint(name string) error {
	if t.config.CheckpointDir == "" {
		return nil
	}
	path := filepath.Join(t.config.CheckpointDir, name)
	if err := checkpoint.Save(path, t.Checkpoint()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.logger.Debug("Saved checkpoint", "path", path, "iteration", t.state.Iteration)
	return nil
}

// learningRate returns the step size for the current cycle, decayed linearly towards zero when annealing.
func (t *Trainer) learningRate() float64 {
	if !t.config.AnnealLearningRate {
		return t.config.LearningRate
	}
	return t.config.LearningRate * (1 - float64(t.state.Iteration)/float64(t.config.Iterations))
}
