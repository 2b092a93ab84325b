package config

import (
	"fmt"

	"github.com/cepro/gridrl/cartesian"
)

// FleetConfig describes the EV charging site and the statistics of the vehicles that arrive at it.
type FleetConfig struct {
	Chargers  int     `yaml:"chargers"`  // the number of vehicles that can be connected at once
	MaxRateKW float64 `yaml:"maxRateKW"` // per-vehicle charging limit
	MinRateKW float64 `yaml:"minRateKW"` // per-vehicle guaranteed rate when site capacity permits

	// ArrivalRate gives the expected arrivals per hour as a function of the hour of day, and must span 0 to 24.
	// A morning and an evening peak give the usual bimodal profile.
	ArrivalRate         cartesian.Curve `yaml:"arrivalRate"`
	WeekendArrivalScale float64         `yaml:"weekendArrivalScale"`

	EnergyMeanKWh float64 `yaml:"energyMeanKWh"`
	EnergyStdKWh  float64 `yaml:"energyStdKWh"`
	EnergyMinKWh  float64 `yaml:"energyMinKWh"`
	EnergyMaxKWh  float64 `yaml:"energyMaxKWh"`

	DwellMinH float64 `yaml:"dwellMinH"`
	DwellMaxH float64 `yaml:"dwellMaxH"`

	StepHours float64 `yaml:"stepHours"`
}

func (f *FleetConfig) Validate() error {
	if !finite(f.MaxRateKW, f.MinRateKW, f.WeekendArrivalScale, f.EnergyMeanKWh, f.EnergyStdKWh, f.EnergyMinKWh,
		f.EnergyMaxKWh, f.DwellMinH, f.DwellMaxH, f.StepHours) {
		return fmt.Errorf("%w: fleet has non-finite parameters", ErrInvalid)
	}
	if f.Chargers < 0 {
		return fmt.Errorf("%w: fleet charger count must not be negative", ErrInvalid)
	}
	if f.MaxRateKW <= 0 {
		return fmt.Errorf("%w: fleet max rate must be positive", ErrInvalid)
	}
	if f.MinRateKW < 0 || f.MinRateKW > f.MaxRateKW {
		return fmt.Errorf("%w: fleet min rate must be in [0, max rate]", ErrInvalid)
	}
	err := f.ArrivalRate.Validate()
	if err != nil {
		return fmt.Errorf("%w: fleet arrival rate: %v", ErrInvalid, err)
	}
	first, last := f.ArrivalRate.Points[0], f.ArrivalRate.Points[len(f.ArrivalRate.Points)-1]
	if first.X > 0 || last.X < 24 {
		return fmt.Errorf("%w: fleet arrival rate must span hours 0 to 24", ErrInvalid)
	}
	for _, p := range f.ArrivalRate.Points {
		if p.Y < 0 {
			return fmt.Errorf("%w: fleet arrival rate must not be negative", ErrInvalid)
		}
	}
	if f.WeekendArrivalScale < 0 {
		return fmt.Errorf("%w: fleet weekend arrival scale must not be negative", ErrInvalid)
	}
	if f.EnergyMinKWh <= 0 || f.EnergyMinKWh > f.EnergyMaxKWh || f.EnergyStdKWh < 0 {
		return fmt.Errorf("%w: fleet energy need distribution is invalid", ErrInvalid)
	}
	if f.DwellMinH <= 0 || f.DwellMinH > f.DwellMaxH {
		return fmt.Errorf("%w: fleet dwell range is invalid", ErrInvalid)
	}
	if f.StepHours <= 0 {
		return fmt.Errorf("%w: fleet step must be positive", ErrInvalid)
	}
	return nil
}
