package config

import "fmt"

// BaselineConfig parameterises the rule-based controller that trained policies are compared against. Prices are
// import prices per kWh.
type BaselineConfig struct {
	CheapPricePerKWh float64 `yaml:"cheapPricePerKWh"` // charge towards TargetSoC at or below this price
	PeakPricePerKWh  float64 `yaml:"peakPricePerKWh"`  // discharge to avoid imports at or above this price
	TargetSoC        float64 `yaml:"targetSoC"`
	ReserveSoC       float64 `yaml:"reserveSoC"` // storage is not discharged at or below this SoC
}

func (b *BaselineConfig) Validate() error {
	if !finite(b.CheapPricePerKWh, b.PeakPricePerKWh, b.TargetSoC, b.ReserveSoC) {
		return fmt.Errorf("%w: baseline settings must be finite", ErrInvalid)
	}
	if b.CheapPricePerKWh > b.PeakPricePerKWh {
		return fmt.Errorf("%w: baseline cheap price %v is above the peak price %v", ErrInvalid, b.CheapPricePerKWh, b.PeakPricePerKWh)
	}
	if b.ReserveSoC < 0 || b.TargetSoC > 1 || b.ReserveSoC > b.TargetSoC {
		return fmt.Errorf("%w: baseline needs 0 <= reserveSoC <= targetSoC <= 1", ErrInvalid)
	}
	return nil
}
