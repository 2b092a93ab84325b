package config

import "fmt"

// RewardConfig holds the named weights of the cost terms that make up the reward.
type RewardConfig struct {
	Cost                   float64 `yaml:"cost"`
	Emission               float64 `yaml:"emission"`
	Degradation            float64 `yaml:"degradation"`
	UnmetDemandPenalty     float64 `yaml:"unmetDemandPenalty"`     // per kWh of unmet demand
	SafetyViolationPenalty float64 `yaml:"safetyViolationPenalty"` // per safety correction
}

func (r *RewardConfig) Validate() error {
	if !finite(r.Cost, r.Emission, r.Degradation, r.UnmetDemandPenalty, r.SafetyViolationPenalty) {
		return fmt.Errorf("%w: reward weights must be finite", ErrInvalid)
	}
	if r.Cost < 0 || r.Emission < 0 || r.Degradation < 0 || r.UnmetDemandPenalty < 0 || r.SafetyViolationPenalty < 0 {
		return fmt.Errorf("%w: reward weights must not be negative", ErrInvalid)
	}
	return nil
}

type EnvironmentConfig struct {
	EpisodeSteps     int     `yaml:"episodeSteps"`
	ForecastSteps    int     `yaml:"forecastSteps"`
	RandomStart      bool    `yaml:"randomStart"`
	InitialSoCMin    float64 `yaml:"initialSoCMin"`
	InitialSoCMax    float64 `yaml:"initialSoCMax"`
	ExportPriceRatio float64 `yaml:"exportPriceRatio"` // export revenue per kWh as a fraction of the import price

	Batteries []BatteryConfig `yaml:"batteries"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Safety    SafetyConfig    `yaml:"safety"`
	Reward    RewardConfig    `yaml:"reward"`
}

func (e *EnvironmentConfig) Validate() error {
	if e.EpisodeSteps <= 0 {
		return fmt.Errorf("%w: episode must have at least one step", ErrInvalid)
	}
	if e.ForecastSteps < 0 {
		return fmt.Errorf("%w: forecast steps must not be negative", ErrInvalid)
	}
	if !finite(e.InitialSoCMin, e.InitialSoCMax, e.ExportPriceRatio) {
		return fmt.Errorf("%w: environment parameters must be finite", ErrInvalid)
	}
	if e.InitialSoCMin < 0 || e.InitialSoCMax > 1 || e.InitialSoCMin > e.InitialSoCMax {
		return fmt.Errorf("%w: initial SoC range is invalid", ErrInvalid)
	}
	if e.ExportPriceRatio < 0 || e.ExportPriceRatio > 1 {
		return fmt.Errorf("%w: export price ratio must be in [0, 1]", ErrInvalid)
	}
	if len(e.Batteries) != len(e.Safety.Storage) {
		return fmt.Errorf("%w: %d batteries but %d storage limits", ErrInvalid, len(e.Batteries), len(e.Safety.Storage))
	}
	for i := range e.Batteries {
		err := e.Batteries[i].Validate()
		if err != nil {
			return err
		}
	}
	err := e.Fleet.Validate()
	if err != nil {
		return err
	}
	err = e.Safety.Validate()
	if err != nil {
		return err
	}
	return e.Reward.Validate()
}
