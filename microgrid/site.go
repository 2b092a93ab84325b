package microgrid

import (
	"math"
	"time"

	"github.com/cepro/gridrl/battery"
	"github.com/cepro/gridrl/feed"
)

// StorageStatus describes one storage unit at the start of an interval. The headroom figures are the unit's power
// rating bounded by the energy it can deliver or absorb within the step.
type StorageStatus struct {
	battery.State
	UsableKWh           float64
	DischargeHeadroomKW float64
	ChargeHeadroomKW    float64
}

// SiteStatus is the physical state of the site at the start of the current interval.
type SiteStatus struct {
	Time       time.Time
	Sample     feed.Sample
	StepHours  float64
	Storage    []StorageStatus
	EVAcceptKW float64
}

// BasePowerKW is the grid exchange the site would need with the storage idle, the fleet drawing `evKW` and nothing
// curtailed. Positive is import.
func (s SiteStatus) BasePowerKW(evKW float64) float64 {
	return s.Sample.LoadKW + evKW - s.Sample.RenewableKW()
}

// Site returns the physical state for controllers that work in kW rather than from the observation vector.
func (e *Environment) Site() SiteStatus {
	status := SiteStatus{
		Time:       e.timeAt(e.index),
		Sample:     e.feed.At(e.clampIndex(e.index)),
		StepHours:  e.stepHours,
		Storage:    make([]StorageStatus, len(e.batteries)),
		EVAcceptKW: e.fleet.AcceptablePowerKW(),
	}
	for i, s := range e.batteries {
		rating := e.config.Safety.Storage[i]
		status.Storage[i] = StorageStatus{
			State:               s,
			UsableKWh:           battery.UsableCapacityKWh(e.config.Batteries[i], s),
			DischargeHeadroomKW: math.Min(rating.MaxDischargeKW, e.energyLimit(i, rating.MaxDischargeKW)),
			ChargeHeadroomKW:    math.Min(rating.MaxChargeKW, -e.energyLimit(i, -rating.MaxChargeKW)),
		}
	}
	return status
}

// Config returns the configuration the environment was built with.
func (e *Environment) Config() Config {
	return e.config
}
