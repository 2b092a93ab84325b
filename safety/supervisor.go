package safety

import (
	"math"

	"github.com/cepro/gridrl/config"
)

type Limits = config.SafetyConfig
type StorageLimits = config.StorageLimits

// StorageStatus is the condition of one storage unit that the checks depend on.
type StorageStatus struct {
	SoC          float64
	TemperatureC float64
}

// Observation is the site state that an action is checked against. Power is in kW.
type Observation struct {
	Storage    []StorageStatus
	EVAcceptKW float64 // what the connected vehicles can take this step
	SolarKW    float64
	WindKW     float64
	LoadKW     float64
}

// Action is a set of power set points for the site. Storage power is positive when discharging, grid power is
// positive when importing, and Curtailment is the fraction of renewable generation to withhold.
type Action struct {
	StorageKW   []float64
	EVKW        float64
	GridKW      float64
	Curtailment float64
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	a.StorageKW = append([]float64(nil), a.StorageKW...)
	return a
}

// Supervisor corrects proposed actions so that they respect the configured limits. It holds no state between calls.
type Supervisor struct {
	limits Limits
}

// New returns a supervisor for the given limits, or an error wrapping config.ErrInvalid.
func New(limits Limits) (*Supervisor, error) {
	err := limits.Validate()
	if err != nil {
		return nil, err
	}
	limits.Storage = append([]StorageLimits(nil), limits.Storage...)
	return &Supervisor{limits: limits}, nil
}

func (s *Supervisor) Limits() Limits {
	return s.limits
}

// Correct returns a safe version of the proposed action along with a record of every correction made. It never
// fails: any input, however malformed, produces a usable action. The checks run in a fixed order, each working on
// the output of the one before:
//  1. power ratings
//  2. state of charge, which zeros discharge at the floor and charge at the ceiling
//  3. thermal derating
//  4. interconnection capacity
//  5. power balance, which settles the residual on the grid and records whatever the grid cannot cover as unmet
func (s *Supervisor) Correct(obs Observation, proposed Action) (Action, Result) {
	var result Result
	obs = sanitizeObservation(obs)
	action := s.sanitize(proposed, &result)

	s.applyRatings(obs, &action, &result)
	s.applySoCGuard(obs, &action, &result)
	s.applyDerating(obs, &action, &result)
	s.applyGridLimit(&action, &result)
	s.balance(obs, &action, &result)

	return action, result
}

// sanitize copies the proposed action into the shape the limits expect and replaces non-finite values with zero.
func (s *Supervisor) sanitize(proposed Action, result *Result) Action {
	n := len(s.limits.Storage)
	action := Action{
		StorageKW:   make([]float64, n),
		EVKW:        proposed.EVKW,
		GridKW:      proposed.GridKW,
		Curtailment: proposed.Curtailment,
	}
	if len(proposed.StorageKW) != n {
		result.add(Shape, -1)
	}
	copy(action.StorageKW, proposed.StorageKW)

	for i := range action.StorageKW {
		if !isFinite(action.StorageKW[i]) {
			action.StorageKW[i] = 0
			result.add(NonFinite, i)
		}
	}
	for _, v := range []*float64{&action.EVKW, &action.GridKW, &action.Curtailment} {
		if !isFinite(*v) {
			*v = 0
			result.add(NonFinite, -1)
		}
	}
	return action
}

func (s *Supervisor) applyRatings(obs Observation, action *Action, result *Result) {
	for i, l := range s.limits.Storage {
		var limited bool
		action.StorageKW[i], limited = limitValue(action.StorageKW[i], l.MaxDischargeKW, l.MaxChargeKW)
		if limited {
			result.add(PowerRating, i)
		}
	}

	evMax := math.Min(s.limits.EVMaxKW, obs.EVAcceptKW)
	var limited bool
	action.EVKW, limited = limitValue(action.EVKW, evMax, 0)
	if limited {
		result.add(EVCapacity, -1)
	}

	action.Curtailment, limited = limitValue(action.Curtailment, 1, 0)
	if limited {
		result.add(Curtailment, -1)
	}
}

func (s *Supervisor) applySoCGuard(obs Observation, action *Action, result *Result) {
	for i, l := range s.limits.Storage {
		if i >= len(obs.Storage) {
			// nothing is known about this unit, so it is left idle
			if action.StorageKW[i] != 0 {
				action.StorageKW[i] = 0
				result.add(Shape, i)
			}
			continue
		}
		soc := obs.Storage[i].SoC
		if !isFinite(soc) {
			if action.StorageKW[i] != 0 {
				action.StorageKW[i] = 0
				result.add(NonFinite, i)
			}
			continue
		}
		if soc <= l.SoCMin && action.StorageKW[i] > 0 {
			action.StorageKW[i] = 0
			result.add(SoCFloor, i)
		} else if soc >= l.SoCMax && action.StorageKW[i] < 0 {
			action.StorageKW[i] = 0
			result.add(SoCCeiling, i)
		}
	}
}

func (s *Supervisor) applyDerating(obs Observation, action *Action, result *Result) {
	for i, l := range s.limits.Storage {
		if i >= len(obs.Storage) || action.StorageKW[i] == 0 {
			continue
		}
		temp := obs.Storage[i].TemperatureC
		if !isFinite(temp) || temp < l.TempMinC || temp > l.TempMaxC {
			action.StorageKW[i] *= l.DeratingFactor
			result.add(Thermal, i)
		}
	}
}

func (s *Supervisor) applyGridLimit(action *Action, result *Result) {
	var limited bool
	action.GridKW, limited = limitValue(action.GridKW, s.limits.GridImportKW, s.limits.GridExportKW)
	if limited {
		result.add(GridCapacity, -1)
	}
}

// balance settles the site's residual on the grid. A surplus beyond the export limit, by more than the balance
// tolerance, is absorbed by curtailing renewables and then by reducing storage discharge. A deficit beyond the import
// limit is absorbed by reducing EV charging and then storage charging, and whatever is left becomes unmet demand.
func (s *Supervisor) balance(obs Observation, action *Action, result *Result) {
	renewable := obs.SolarKW + obs.WindKW
	grid := residual(obs, *action)
	// a residual within tolerance of a limit counts as balanced
	tolerance := s.limits.BalanceToleranceKW

	if grid < -s.limits.GridExportKW-tolerance {
		excess := -s.limits.GridExportKW - grid
		result.add(PowerBalance, -1)

		available := renewable * (1 - action.Curtailment)
		if renewable > 0 && available > 0 {
			extra := math.Min(excess, available)
			action.Curtailment = math.Min(action.Curtailment+extra/renewable, 1)
			excess -= extra
		}
		if excess > 0 {
			excess = reduce(action.StorageKW, excess, func(p float64) bool { return p > 0 })
		}
		grid = residual(obs, *action)
	}

	if grid > s.limits.GridImportKW+tolerance {
		shortfall := grid - s.limits.GridImportKW
		result.add(PowerBalance, -1)

		cut := math.Min(shortfall, action.EVKW)
		action.EVKW -= cut
		shortfall -= cut
		if shortfall > 0 {
			reduce(action.StorageKW, shortfall, func(p float64) bool { return p < 0 })
		}
		grid = residual(obs, *action)
		if grid > s.limits.GridImportKW {
			result.UnmetKW = grid - s.limits.GridImportKW
		}
	}

	action.GridKW, _ = limitValue(grid, s.limits.GridImportKW, s.limits.GridExportKW)
	result.CurtailedKW = renewable * action.Curtailment
}

// residual returns the grid exchange that balances the site for the given action.
func residual(obs Observation, action Action) float64 {
	storage := 0.0
	for _, p := range action.StorageKW {
		storage += p
	}
	return obs.LoadKW + action.EVKW - (obs.SolarKW+obs.WindKW)*(1-action.Curtailment) - storage
}

// reduce moves the selected storage set points towards zero, pro rata to their size, by a total of up to `amount`
// kW. It returns the amount that could not be taken.
func reduce(storageKW []float64, amount float64, selected func(float64) bool) float64 {
	total := 0.0
	for _, p := range storageKW {
		if selected(p) {
			total += math.Abs(p)
		}
	}
	if total == 0 {
		return amount
	}
	fraction := math.Min(amount/total, 1)
	for i, p := range storageKW {
		if selected(p) {
			storageKW[i] = p * (1 - fraction)
		}
	}
	return math.Max(amount-total, 0)
}

// Balance returns supply minus demand for the site when running the given action with `unmetKW` of load shed. For every
// action returned by Correct it lies within the balance tolerance.
func Balance(obs Observation, action Action, unmetKW float64) float64 {
	storage := 0.0
	for _, p := range action.StorageKW {
		storage += p
	}
	supply := action.GridKW + (obs.SolarKW+obs.WindKW)*(1-action.Curtailment) + storage + unmetKW
	demand := obs.LoadKW + action.EVKW
	return supply - demand
}

// limitValue returns the value capped between `maxPositive` and `-maxNegative`, alongside a boolean indicating if
// limits needed to be applied
func limitValue(value, maxPositive, maxNegative float64) (float64, bool) {
	if value > maxPositive {
		return maxPositive, true
	} else if value < -maxNegative {
		return -maxNegative, true
	} else {
		return value, false
	}
}

func sanitizeObservation(obs Observation) Observation {
	clean := func(v float64) float64 {
		if !isFinite(v) || v < 0 {
			return 0
		}
		return v
	}
	obs.EVAcceptKW = clean(obs.EVAcceptKW)
	obs.SolarKW = clean(obs.SolarKW)
	obs.WindKW = clean(obs.WindKW)
	obs.LoadKW = clean(obs.LoadKW)
	return obs
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
