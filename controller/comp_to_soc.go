package controller

import "github.com/cepro/gridrl/microgrid"

// chargeToSoC returns the control component for charging the storage up to the target SoC while the import price is
// at or below the cheap price. The energy still needed is spread over a single step, so in practice the units charge
// as hard as their headroom allows until they reach the target.
func chargeToSoC(site microgrid.SiteStatus, cheapPrice, targetSoC float64) controlComponent {
	if site.Sample.PricePerKWh > cheapPrice || site.StepHours <= 0 {
		return INACTIVE_CONTROL_COMPONENT
	}

	energyToCharge := 0.0
	for _, s := range site.Storage {
		if s.SoC < targetSoC {
			energyToCharge += (targetSoC - s.SoC) * s.UsableKWh
		}
	}
	if energyToCharge <= 0 {
		return INACTIVE_CONTROL_COMPONENT
	}

	return chargingControlComponentThatAllowsMoreCharge("charge_to_soc", -energyToCharge/site.StepHours)
}
