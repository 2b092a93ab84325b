package battery

import (
	"math"

	"github.com/cepro/gridrl/config"
)

type Params = config.BatteryConfig

// State is the condition of one storage unit at the start of a step.
type State struct {
	SoC           float64 // fraction of the usable capacity, in [0, 1]
	SoH           float64 // fraction of the rated capacity remaining, never increases
	TemperatureC  float64
	ThroughputKWh float64 // cumulative energy moved in either direction, never decreases
	Cycles        float64 // equivalent full cycles

	// the current half cycle started at CycleStartSoC, moving in CycleDirection (+1 discharging, -1 charging, 0
	// before the first move)
	CycleStartSoC  float64
	CycleDirection int
}

// NewState returns a brand new unit at ambient temperature holding the given state of charge.
func NewState(p Params, soc float64) State {
	soc = clamp(soc, 0, 1)
	return State{
		SoC:           soc,
		SoH:           1,
		TemperatureC:  p.AmbientTempC,
		CycleStartSoC: soc,
	}
}

// UsableCapacityKWh returns the energy that a full unit currently holds.
func UsableCapacityKWh(p Params, s State) float64 {
	return p.CapacityKWh * s.SoH
}

// ApplyPower returns the state after `powerKW` has been applied for `durationH` hours, along with the degradation
// cost incurred. Positive power discharges the unit. The caller is expected to have bounded the power already: the
// SoC is clamped rather than overdrawn.
//
// Cycle ageing grows with the depth of the current half cycle, the SoC swing since the last reversal between
// charging and discharging. Idle steps do not end a half cycle.
func ApplyPower(p Params, s State, powerKW, durationH float64) (State, float64) {
	usable := UsableCapacityKWh(p, s)
	throughput := math.Abs(powerKW) * durationH

	next := s
	next.SoC = clamp(s.SoC-powerKW*durationH/usable, 0, 1)
	next.ThroughputKWh = s.ThroughputKWh + throughput
	next.Cycles = s.Cycles + throughput/(2*usable)

	loss := p.CalendarFadePerHour * durationH
	if throughput > 0 {
		direction := 1
		if powerKW < 0 {
			direction = -1
		}
		if direction != s.CycleDirection {
			next.CycleStartSoC = s.SoC
			next.CycleDirection = direction
		}
		depth := math.Abs(next.SoC - next.CycleStartSoC)
		loss += p.CycleFadeCoeff * math.Pow(depth, p.DoDExponent) * math.Pow(throughput, p.ThroughputExponent)
	}
	// once at the floor the SoH stays pinned there
	next.SoH = math.Max(s.SoH-loss, p.MinSoH)

	equilibrium := p.AmbientTempC + p.HeatingCoeffCPerKW2*powerKW*powerKW
	decay := math.Exp(-durationH / p.ThermalTimeConstantH)
	next.TemperatureC = equilibrium + (s.TemperatureC-equilibrium)*decay

	cost := p.DegradationCostPerKWh*throughput + p.ThermalSurchargePerDegreeHour*degreesOutside(p, next.TemperatureC)*durationH

	return next, cost
}

// degreesOutside returns how far the temperature lies outside the safe band, or zero if it is inside.
func degreesOutside(p Params, tempC float64) float64 {
	if tempC > p.SafeTempMaxC {
		return tempC - p.SafeTempMaxC
	}
	if tempC < p.SafeTempMinC {
		return p.SafeTempMinC - tempC
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
