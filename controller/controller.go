// Package controller holds a rule-based controller for the microgrid environment. It is the baseline that trained
// policies are measured against.
package controller

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/microgrid"
)

type Config = config.BaselineConfig

// Controller decides storage, EV, grid and curtailment set points from the physical state of the site.
//
// Each control mode produces a control component, and the components are prioritised to give a single target for
// the combined storage power. The EV fleet is always offered everything it can accept.
type Controller struct {
	config Config
	limits config.SafetyConfig

	logger *slog.Logger
}

// plan holds the set points for one interval in kW, before they are normalised into an action.
type plan struct {
	activeComponentNames string
	bessTargetPower      float64
	storageKW            []float64
	evKW                 float64
	gridKW               float64
	curtailment          float64
}

// prioritisedAction is the result of prioritising the control components.
type prioritisedAction struct {
	activeComponentNames string
	bessTargetPower      float64
}

func New(cfg Config, limits config.SafetyConfig) (*Controller, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	err = limits.Validate()
	if err != nil {
		return nil, fmt.Errorf("safety limits: %w", err)
	}
	return &Controller{
		config: cfg,
		limits: limits,
		logger: slog.Default().With("component", "baseline"),
	}, nil
}

// Action returns the normalised action for the site in its current state, in the layout the environment expects.
func (c *Controller) Action(site microgrid.SiteStatus) []float64 {
	p := c.plan(site)

	n := len(c.limits.Storage)
	action := make([]float64, n+3)
	for i, power := range p.storageKW {
		rating := c.limits.Storage[i]
		if power > 0 {
			action[i] = power / rating.MaxDischargeKW
		} else if power < 0 {
			action[i] = power / rating.MaxChargeKW
		}
	}

	action[n] = -1
	if c.limits.EVMaxKW > 0 {
		// scaled down a hair so that rounding never offers the fleet more than it accepts
		action[n] = 2*p.evKW*(1-1e-9)/c.limits.EVMaxKW - 1
	}

	if p.gridKW >= 0 && c.limits.GridImportKW > 0 {
		action[n+1] = math.Min(p.gridKW/c.limits.GridImportKW, 1)
	} else if p.gridKW < 0 && c.limits.GridExportKW > 0 {
		action[n+1] = math.Max(p.gridKW/c.limits.GridExportKW, -1)
	}

	action[n+2] = 2*p.curtailment - 1

	c.logger.Debug("Controlling site", "time", site.Time, "active_components", p.activeComponentNames, "bess_target_power", p.bessTargetPower, "ev_power", p.evKW, "grid_power", p.gridKW, "curtailment", p.curtailment)

	return action
}

func (c *Controller) plan(site microgrid.SiteStatus) plan {
	evKW := math.Max(0, math.Min(site.EVAcceptKW, c.limits.EVMaxKW))
	basePower := site.BasePowerKW(evKW)

	components := []controlComponent{
		exportAvoidance(basePower),
		importAvoidance(site.Sample.PricePerKWh, c.config.PeakPricePerKWh, basePower),
		chargeToSoC(site, c.config.CheapPricePerKWh, c.config.TargetSoC),
	}
	action := c.prioritiseControlComponents(components, basePower)

	storageKW := c.dispatch(site, action.bessTargetPower)
	storage := 0.0
	for _, p := range storageKW {
		storage += p
	}

	// anything the export limit cannot take is curtailed
	grid := basePower - storage
	curtailment := 0.0
	renewable := site.Sample.RenewableKW()
	if grid < -c.limits.GridExportKW && renewable > 0 {
		curtailment = math.Min((-c.limits.GridExportKW-grid)/renewable, 1)
		grid += curtailment * renewable
	}

	return plan{
		activeComponentNames: action.activeComponentNames,
		bessTargetPower:      action.bessTargetPower,
		storageKW:            storageKW,
		evKW:                 evKW,
		gridKW:               grid,
		curtailment:          curtailment,
	}
}

// prioritiseControlComponents merges the components, highest priority first, into a single storage target. The first
// active component sets the target, and then its status decides which of the following components may move it: none
// after a greedy component, only harder charging after an "allow more charge" one, and only harder discharging after
// an "allow more discharge" one.
func (c *Controller) prioritiseControlComponents(components []controlComponent, basePower float64) prioritisedAction {
	var names []string
	target := 0.0
	status := componentStatusInactive

componentLoop:
	for _, component := range components {
		if component.status == componentStatusInactive {
			continue
		}
		power := component.bessPower(basePower)

		switch status {
		case componentStatusActiveGreedy:
			break componentLoop
		case componentStatusActiveAllowMoreCharge:
			if power >= target {
				continue
			}
		case componentStatusActiveAllowMoreDischarge:
			if power <= target {
				continue
			}
		}

		target = power
		status = component.status
		names = append(names, component.name)
	}

	if len(names) == 0 {
		return prioritisedAction{activeComponentNames: "idle"}
	}
	return prioritisedAction{
		activeComponentNames: strings.Join(names, ","),
		bessTargetPower:      target,
	}
}

// dispatch shares the storage target between the units in proportion to the headroom each has in that direction.
// Units outside their temperature band are left idle, as are units that a move would take beyond the reserve or the
// SoC limits.
func (c *Controller) dispatch(site microgrid.SiteStatus, target float64) []float64 {
	storageKW := make([]float64, len(site.Storage))
	if target == 0 || math.IsNaN(target) {
		return storageKW
	}

	available := make([]float64, len(site.Storage))
	total := 0.0
	for i, s := range site.Storage {
		if i >= len(c.limits.Storage) {
			break
		}
		l := c.limits.Storage[i]
		if s.TemperatureC < l.TempMinC || s.TemperatureC > l.TempMaxC {
			continue
		}
		if target > 0 && s.SoC > math.Max(l.SoCMin, c.config.ReserveSoC) {
			available[i] = math.Max(s.DischargeHeadroomKW, 0)
		} else if target < 0 && s.SoC < l.SoCMax {
			available[i] = math.Max(s.ChargeHeadroomKW, 0)
		}
		total += available[i]
	}
	if total == 0 {
		return storageKW
	}

	share := math.Min(math.Abs(target)/total, 1)
	sign := math.Copysign(1, target)
	for i, a := range available {
		storageKW[i] = sign * a * share
	}
	return storageKW
}
