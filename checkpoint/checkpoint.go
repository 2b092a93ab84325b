// Package checkpoint saves and restores everything needed to resume training or to run a trained policy: the policy
// and value parameters, the observation normalizer and the position of the run.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cepro/gridrl/nn"
	"github.com/cepro/gridrl/normalize"
	"github.com/google/uuid"
)

// Version is written into every checkpoint, and Load only accepts checkpoints carrying it.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported checkpoint version")
	ErrCorrupt            = errors.New("corrupt checkpoint")
)

type Policy struct {
	Sizes     []int     `json:"sizes"`
	Params    []float64 `json:"params"`
	LogStdRaw []float64 `json:"logStdRaw"`
	LogStdMin float64   `json:"logStdMin"`
	LogStdMax float64   `json:"logStdMax"`
}

type Value struct {
	Sizes  []int     `json:"sizes"`
	Params []float64 `json:"params"`
}

type Checkpoint struct {
	Version    int       `json:"version"`
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"runId"`
	CreatedAt  time.Time `json:"createdAt"`
	Iteration  int       `json:"iteration"`
	TotalSteps int       `json:"totalSteps"`
	Episodes   int       `json:"episodes"`

	// BestMeanReward is nil until an update cycle has completed at least one episode.
	BestMeanReward *float64 `json:"bestMeanReward,omitempty"`

	Policy     Policy             `json:"policy"`
	Value      Value              `json:"value"`
	Normalizer normalize.Snapshot `json:"normalizer"`
}

// Capture copies the current parameters into a new checkpoint.
func Capture(runID uuid.UUID, policy *nn.GaussianPolicy, value *nn.ValueFunction, normalizer *normalize.RunningStats) Checkpoint {
	logStdMin, logStdMax := policy.LogStdBounds()
	return Checkpoint{
		Version:   Version,
		ID:        uuid.New(),
		RunID:     runID,
		CreatedAt: time.Now(),
		Policy: Policy{
			Sizes:     policy.Sizes(),
			Params:    append([]float64(nil), policy.MeanParams()...),
			LogStdRaw: append([]float64(nil), policy.LogStdRaw()...),
			LogStdMin: logStdMin,
			LogStdMax: logStdMax,
		},
		Value: Value{
			Sizes:  value.Sizes(),
			Params: append([]float64(nil), value.Params()...),
		},
		Normalizer: normalizer.Snapshot(),
	}
}

// Restore rebuilds the networks and normalizer held in the checkpoint.
func (c *Checkpoint) Restore() (*nn.GaussianPolicy, *nn.ValueFunction, *normalize.RunningStats, error) {
	if err := c.validate(); err != nil {
		return nil, nil, nil, err
	}
	policy, err := nn.PolicyFromParams(c.Policy.Sizes, c.Policy.Params, c.Policy.LogStdRaw, c.Policy.LogStdMin, c.Policy.LogStdMax)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: policy: %w", ErrCorrupt, err)
	}
	value, err := nn.ValueFromParams(c.Value.Sizes, c.Value.Params)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: value function: %w", ErrCorrupt, err)
	}
	normalizer, err := normalize.FromSnapshot(c.Normalizer)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: normalizer: %w", ErrCorrupt, err)
	}
	if normalizer.Size() != c.Policy.Sizes[0] || c.Value.Sizes[0] != c.Policy.Sizes[0] {
		return nil, nil, nil, fmt.Errorf("%w: observation sizes disagree", ErrCorrupt)
	}
	return policy, value, normalizer, nil
}

// Save writes the checkpoint to `path`. The file is written under a temporary name and renamed into place, so a
// crash part way through never leaves a truncated checkpoint behind.
func Save(path string, c Checkpoint) error {
	if err := c.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temporary checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if c.Version != Version {
		return Checkpoint{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, c.Version, Version)
	}
	if err := c.validate(); err != nil {
		return Checkpoint{}, err
	}
	return c, nil
}

func (c *Checkpoint) validate() error {
	if c.Version != Version {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, c.Version, Version)
	}
	if len(c.Policy.Sizes) < 2 || len(c.Value.Sizes) < 2 {
		return fmt.Errorf("%w: missing network sizes", ErrCorrupt)
	}
	if len(c.Policy.Params) != nn.NumParamsFor(c.Policy.Sizes) || len(c.Value.Params) != nn.NumParamsFor(c.Value.Sizes) {
		return fmt.Errorf("%w: parameter counts do not match network sizes", ErrCorrupt)
	}
	if len(c.Policy.LogStdRaw) != c.Policy.Sizes[len(c.Policy.Sizes)-1] {
		return fmt.Errorf("%w: log std size does not match the action size", ErrCorrupt)
	}

	groups := map[string][]float64{
		"policy":          c.Policy.Params,
		"policy log std":  c.Policy.LogStdRaw,
		"policy bounds":   {c.Policy.LogStdMin, c.Policy.LogStdMax},
		"value":           c.Value.Params,
		"normalizer mean": c.Normalizer.Mean,
		"normalizer m2":   c.Normalizer.M2,
		"normalizer":      {c.Normalizer.Count, c.Normalizer.Epsilon, c.Normalizer.Clip},
	}
	if c.BestMeanReward != nil {
		groups["best mean reward"] = []float64{*c.BestMeanReward}
	}
	for name, values := range groups {
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite %s value", ErrCorrupt, name)
			}
		}
	}
	return nil
}
