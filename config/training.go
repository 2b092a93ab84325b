package config

import "fmt"

// TrainingConfig holds the hyperparameters of the PPO trainer.
type TrainingConfig struct {
	Iterations    int `yaml:"iterations"`    // number of collect/update cycles
	BufferSize    int `yaml:"bufferSize"`    // transitions collected per cycle, across all workers
	MinibatchSize int `yaml:"minibatchSize"` // transitions per gradient step
	Epochs        int `yaml:"epochs"`        // passes over the buffer per cycle
	Workers       int `yaml:"workers"`       // independent environment instances collecting in parallel

	Gamma       float64 `yaml:"gamma"`
	Lambda      float64 `yaml:"lambda"`
	ClipEpsilon float64 `yaml:"clipEpsilon"`
	EntropyCoef float64 `yaml:"entropyCoef"`
	ValueCoef   float64 `yaml:"valueCoef"`
	MaxGradNorm float64 `yaml:"maxGradNorm"`
	TargetKL    float64 `yaml:"targetKL"` // zero disables the early stop

	LearningRate       float64 `yaml:"learningRate"`
	AnnealLearningRate bool    `yaml:"annealLearningRate"`

	Seed        int64   `yaml:"seed"`
	HiddenSizes []int   `yaml:"hiddenSizes"`
	LogStdMin   float64 `yaml:"logStdMin"`
	LogStdMax   float64 `yaml:"logStdMax"`
	InitLogStd  float64 `yaml:"initLogStd"`

	ObsClip    float64 `yaml:"obsClip"`
	ObsEpsilon float64 `yaml:"obsEpsilon"`

	CheckpointEvery int    `yaml:"checkpointEvery"` // in cycles, zero disables periodic checkpoints
	CheckpointDir   string `yaml:"checkpointDir"`

	// thresholds for diagnostic warnings, they never change the algorithm
	EntropyWarnBelow   float64 `yaml:"entropyWarnBelow"`
	AdvantageWarnAbove float64 `yaml:"advantageWarnAbove"`
}

func (t *TrainingConfig) Validate() error {
	if !finite(t.Gamma, t.Lambda, t.ClipEpsilon, t.EntropyCoef, t.ValueCoef, t.MaxGradNorm, t.TargetKL, t.LearningRate,
		t.LogStdMin, t.LogStdMax, t.InitLogStd, t.ObsClip, t.ObsEpsilon, t.EntropyWarnBelow, t.AdvantageWarnAbove) {
		return fmt.Errorf("%w: training parameters must be finite", ErrInvalid)
	}
	if t.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive", ErrInvalid)
	}
	if t.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size must be positive", ErrInvalid)
	}
	if t.MinibatchSize <= 0 || t.MinibatchSize > t.BufferSize {
		return fmt.Errorf("%w: minibatch size must be in [1, buffer size]", ErrInvalid)
	}
	if t.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive", ErrInvalid)
	}
	if t.Workers <= 0 || t.Workers > t.BufferSize {
		return fmt.Errorf("%w: workers must be in [1, buffer size]", ErrInvalid)
	}
	if t.Gamma <= 0 || t.Gamma > 1 || t.Lambda < 0 || t.Lambda > 1 {
		return fmt.Errorf("%w: gamma must be in (0, 1] and lambda in [0, 1]", ErrInvalid)
	}
	if t.ClipEpsilon <= 0 || t.ClipEpsilon >= 1 {
		return fmt.Errorf("%w: clip epsilon must be in (0, 1)", ErrInvalid)
	}
	if t.EntropyCoef < 0 || t.ValueCoef <= 0 || t.MaxGradNorm <= 0 || t.TargetKL < 0 || t.LearningRate <= 0 {
		return fmt.Errorf("%w: loss coefficients, gradient norm and learning rate are out of range", ErrInvalid)
	}
	if len(t.HiddenSizes) == 0 {
		return fmt.Errorf("%w: at least one hidden layer is required", ErrInvalid)
	}
	for _, size := range t.HiddenSizes {
		if size <= 0 {
			return fmt.Errorf("%w: hidden layer sizes must be positive", ErrInvalid)
		}
	}
	if !(t.LogStdMin < t.InitLogStd && t.InitLogStd < t.LogStdMax) {
		return fmt.Errorf("%w: initial log std must lie strictly inside [%v, %v]", ErrInvalid, t.LogStdMin, t.LogStdMax)
	}
	if t.ObsClip <= 0 || t.ObsEpsilon <= 0 {
		return fmt.Errorf("%w: observation clip and epsilon must be positive", ErrInvalid)
	}
	if t.CheckpointEvery < 0 {
		return fmt.Errorf("%w: checkpoint interval must not be negative", ErrInvalid)
	}
	if t.CheckpointEvery > 0 && t.CheckpointDir == "" {
		return fmt.Errorf("%w: periodic checkpoints need a directory", ErrInvalid)
	}
	return nil
}
