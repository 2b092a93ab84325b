package config

import "fmt"

// StorageLimits are the operating bounds for one storage unit. Power is in kW.
type StorageLimits struct {
	MaxChargeKW    float64 `yaml:"maxChargeKW"`
	MaxDischargeKW float64 `yaml:"maxDischargeKW"`
	SoCMin         float64 `yaml:"socMin"`
	SoCMax         float64 `yaml:"socMax"`
	TempMinC       float64 `yaml:"tempMinC"`
	TempMaxC       float64 `yaml:"tempMaxC"`
	DeratingFactor float64 `yaml:"deratingFactor"` // power is scaled by this factor when the temperature is out of band
}

// SafetyConfig holds the explicit bounds that the safety supervisor enforces. There are no defaults.
type SafetyConfig struct {
	Storage            []StorageLimits `yaml:"storage"`
	EVMaxKW            float64         `yaml:"evMaxKW"`
	GridImportKW       float64         `yaml:"gridImportKW"`
	GridExportKW       float64         `yaml:"gridExportKW"`
	BalanceToleranceKW float64         `yaml:"balanceToleranceKW"`
}

func (s *SafetyConfig) Validate() error {
	if !finite(s.EVMaxKW, s.GridImportKW, s.GridExportKW, s.BalanceToleranceKW) {
		return fmt.Errorf("%w: safety limits must be finite", ErrInvalid)
	}
	for i, l := range s.Storage {
		if !finite(l.MaxChargeKW, l.MaxDischargeKW, l.SoCMin, l.SoCMax, l.TempMinC, l.TempMaxC, l.DeratingFactor) {
			return fmt.Errorf("%w: storage %d limits must be finite", ErrInvalid, i)
		}
		if l.MaxChargeKW < 0 || l.MaxDischargeKW < 0 {
			return fmt.Errorf("%w: storage %d power ratings must not be negative", ErrInvalid, i)
		}
		if l.SoCMin < 0 || l.SoCMax > 1 || l.SoCMin > l.SoCMax {
			return fmt.Errorf("%w: storage %d SoC floor %v and ceiling %v must satisfy 0 <= floor <= ceiling <= 1", ErrInvalid, i, l.SoCMin, l.SoCMax)
		}
		if l.TempMinC >= l.TempMaxC {
			return fmt.Errorf("%w: storage %d temperature band is empty", ErrInvalid, i)
		}
		if l.DeratingFactor <= 0 || l.DeratingFactor > 1 {
			return fmt.Errorf("%w: storage %d derating factor must be in (0, 1]", ErrInvalid, i)
		}
	}
	if s.EVMaxKW < 0 || s.GridImportKW < 0 || s.GridExportKW < 0 {
		return fmt.Errorf("%w: EV and grid limits must not be negative", ErrInvalid)
	}
	if s.BalanceToleranceKW <= 0 {
		return fmt.Errorf("%w: balance tolerance must be positive", ErrInvalid)
	}
	return nil
}
