package config

import "fmt"

// BatteryConfig holds the physical and economic parameters of one storage unit.
// Power is in kW, energy in kWh, temperatures in degrees C and durations in hours.
type BatteryConfig struct {
	Name        string  `yaml:"name"`
	CapacityKWh float64 `yaml:"capacityKWh"` // rated usable capacity when new
	MinSoH      float64 `yaml:"minSoH"`      // the SoH floor, below which the model pins the state

	CalendarFadePerHour float64 `yaml:"calendarFadePerHour"` // SoH lost per hour regardless of use
	CycleFadeCoeff      float64 `yaml:"cycleFadeCoeff"`      // scales the depth-of-discharge/throughput ageing term
	DoDExponent         float64 `yaml:"dodExponent"`         // p > 1, penalises deep cycles
	ThroughputExponent  float64 `yaml:"throughputExponent"`  // q > 0

	AmbientTempC         float64 `yaml:"ambientTempC"`
	ThermalTimeConstantH float64 `yaml:"thermalTimeConstantH"`
	HeatingCoeffCPerKW2  float64 `yaml:"heatingCoeffCPerKW2"` // equilibrium temperature rise per kW^2 of power
	SafeTempMinC         float64 `yaml:"safeTempMinC"`
	SafeTempMaxC         float64 `yaml:"safeTempMaxC"`

	DegradationCostPerKWh         float64 `yaml:"degradationCostPerKWh"`
	ThermalSurchargePerDegreeHour float64 `yaml:"thermalSurchargePerDegreeHour"`
}

func (b *BatteryConfig) Validate() error {
	if !finite(b.CapacityKWh, b.MinSoH, b.CalendarFadePerHour, b.CycleFadeCoeff, b.DoDExponent, b.ThroughputExponent,
		b.AmbientTempC, b.ThermalTimeConstantH, b.HeatingCoeffCPerKW2, b.SafeTempMinC, b.SafeTempMaxC,
		b.DegradationCostPerKWh, b.ThermalSurchargePerDegreeHour) {
		return fmt.Errorf("%w: battery '%s' has non-finite parameters", ErrInvalid, b.Name)
	}
	if b.CapacityKWh <= 0 {
		return fmt.Errorf("%w: battery '%s' capacity must be positive", ErrInvalid, b.Name)
	}
	if b.MinSoH <= 0 || b.MinSoH >= 1 {
		return fmt.Errorf("%w: battery '%s' SoH floor must be in (0, 1)", ErrInvalid, b.Name)
	}
	if b.CalendarFadePerHour < 0 || b.CycleFadeCoeff < 0 {
		return fmt.Errorf("%w: battery '%s' fade rates must not be negative", ErrInvalid, b.Name)
	}
	if b.DoDExponent <= 1 {
		return fmt.Errorf("%w: battery '%s' depth-of-discharge exponent must be > 1", ErrInvalid, b.Name)
	}
	if b.ThroughputExponent <= 0 {
		return fmt.Errorf("%w: battery '%s' throughput exponent must be > 0", ErrInvalid, b.Name)
	}
	if b.ThermalTimeConstantH <= 0 {
		return fmt.Errorf("%w: battery '%s' thermal time constant must be positive", ErrInvalid, b.Name)
	}
	if b.HeatingCoeffCPerKW2 < 0 {
		return fmt.Errorf("%w: battery '%s' heating coefficient must not be negative", ErrInvalid, b.Name)
	}
	if b.SafeTempMinC >= b.SafeTempMaxC {
		return fmt.Errorf("%w: battery '%s' safe temperature band is empty", ErrInvalid, b.Name)
	}
	if b.DegradationCostPerKWh < 0 || b.ThermalSurchargePerDegreeHour < 0 {
		return fmt.Errorf("%w: battery '%s' costs must not be negative", ErrInvalid, b.Name)
	}
	return nil
}
