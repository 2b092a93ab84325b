package microgrid

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cepro/gridrl/battery"
	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/ev"
	"github.com/cepro/gridrl/feed"
	"github.com/cepro/gridrl/safety"
	"github.com/cepro/gridrl/telemetry"
	timeutils "github.com/cepro/gridrl/time_utils"
	"github.com/google/uuid"
)

type Config = config.EnvironmentConfig
type RewardWeights = config.RewardConfig

var (
	ErrActionShape = errors.New("action has the wrong shape")
	ErrNotReset    = errors.New("environment has not been reset")
	ErrEpisodeDone = errors.New("episode is done")
)

type phase int

const (
	phaseReset phase = iota
	phaseRunning
	phaseDone
)

// StepResult is the outcome of one call to Step.
type StepResult struct {
	Observation []float64
	Reward      float64
	Done        bool
	Info        telemetry.StepDiagnostics
}

// Counters accumulate over an episode and never decrease within it.
type Counters struct {
	Steps      int
	UnmetKWh   float64
	Violations int
}

// Environment simulates a site with batteries, an EV charging fleet, renewables and a grid connection, driven by an
// exogenous feed. One step covers one feed interval.
type Environment struct {
	config     Config
	feed       feed.Feed
	supervisor *safety.Supervisor
	fleet      *ev.Fleet
	stepHours  float64

	phase     phase
	start     int // feed index of the first interval in the episode
	index     int // feed index of the current interval
	batteries []battery.State
	counters  Counters
	summary   telemetry.EpisodeSummary

	logger *slog.Logger
}

// New returns an environment over the given feed. Invalid configuration is reported as an error wrapping
// config.ErrInvalid.
func New(cfg Config, f feed.Feed) (*Environment, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if f == nil || f.Len() == 0 {
		return nil, fmt.Errorf("%w: environment needs a non-empty feed", config.ErrInvalid)
	}
	stepHours := f.Step().Hours()
	if math.Abs(cfg.Fleet.StepHours-stepHours) > 1e-9 {
		return nil, fmt.Errorf("%w: fleet step of %vh does not match feed step of %v", config.ErrInvalid, cfg.Fleet.StepHours, f.Step())
	}

	supervisor, err := safety.New(cfg.Safety)
	if err != nil {
		return nil, fmt.Errorf("create supervisor: %w", err)
	}
	fleet, err := ev.NewFleet(cfg.Fleet)
	if err != nil {
		return nil, fmt.Errorf("create fleet: %w", err)
	}

	return &Environment{
		config:     cfg,
		feed:       f,
		supervisor: supervisor,
		fleet:      fleet,
		stepHours:  stepHours,
		batteries:  make([]battery.State, len(cfg.Batteries)),
		logger:     slog.Default().With("component", "environment"),
	}, nil
}

// ActionSize returns the length of the action vector: one set point per battery, then EV charging, grid exchange and
// curtailment. Every component is normalised to [-1, 1].
func (e *Environment) ActionSize() int {
	return len(e.config.Batteries) + 3
}

// Reset starts a new episode. Given the same seed, the same sequence of actions produces the same observations.
func (e *Environment) Reset(seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))

	e.start = 0
	if e.config.RandomStart && e.feed.Len() > e.config.EpisodeSteps {
		e.start = r.Intn(e.feed.Len() - e.config.EpisodeSteps + 1)
	}
	e.index = e.start

	for i, params := range e.config.Batteries {
		soc := e.config.InitialSoCMin + (e.config.InitialSoCMax-e.config.InitialSoCMin)*r.Float64()
		e.batteries[i] = battery.NewState(params, soc)
	}
	e.fleet.Reset(e.timeAt(e.index), r)

	e.counters = Counters{}
	e.summary = telemetry.EpisodeSummary{
		ID:        uuid.New(),
		StartTime: e.timeAt(e.start),
		MinSoH:    1,
	}
	e.phase = phaseRunning

	return e.observe()
}

// Step applies the normalised action for the current interval and advances the simulation by one step. The action
// is made safe before it is applied, so the only errors are an action of the wrong length or a call outside of a
// running episode.
func (e *Environment) Step(action []float64) (StepResult, error) {
	switch e.phase {
	case phaseReset:
		return StepResult{}, ErrNotReset
	case phaseDone:
		return StepResult{}, ErrEpisodeDone
	}
	if len(action) != e.ActionSize() {
		return StepResult{}, fmt.Errorf("%w: got %d values, expected %d", ErrActionShape, len(action), e.ActionSize())
	}

	sample := e.feed.At(e.index)
	t := e.timeAt(e.index)
	dt := e.stepHours
	weights := e.config.Reward

	proposed := e.scaleAction(action)
	obs := e.supervisorObservation(sample)
	safeAction, result := e.supervisor.Correct(obs, proposed)

	info := telemetry.StepDiagnostics{
		Step:         e.counters.Steps,
		Time:         t,
		StorageKW:    safeAction.StorageKW,
		SoC:          make([]float64, len(e.batteries)),
		SoH:          make([]float64, len(e.batteries)),
		TemperatureC: make([]float64, len(e.batteries)),
	}

	degradation := 0.0
	for i, params := range e.config.Batteries {
		next, cost := battery.ApplyPower(params, e.batteries[i], safeAction.StorageKW[i], dt)
		e.batteries[i] = next
		degradation += cost
		info.SoC[i] = next.SoC
		info.SoH[i] = next.SoH
		info.TemperatureC[i] = next.TemperatureC
		e.summary.MinSoH = math.Min(e.summary.MinSoH, next.SoH)
	}

	fleetResult := e.fleet.Step(t, safeAction.EVKW)
	info.EVKW = fleetResult.AggregateKW
	info.EVConnected = len(fleetResult.Allocations)
	info.EVAtRisk = len(fleetResult.AtRisk)
	info.EVDepartures = len(fleetResult.Departures)
	for _, d := range fleetResult.Departures {
		if d.Met {
			info.EVSatisfied++
		}
	}

	// the grid takes whatever the fleet did not draw, within its limits
	grid, curtailment, unmetKW := e.settle(sample, safeAction, fleetResult.AggregateKW, result.UnmetKW)
	info.ImportKW = math.Max(grid, 0)
	info.ExportKW = math.Max(-grid, 0)
	info.CurtailedKW = sample.RenewableKW() * curtailment
	info.UnmetKWh = unmetKW * dt

	importKWh := info.ImportKW * dt
	exportKWh := info.ExportKW * dt
	info.EmissionKg = importKWh * sample.CarbonKgPerKWh
	info.ImportCost = weights.Cost * importKWh * sample.PricePerKWh
	info.ExportRevenue = weights.Cost * exportKWh * sample.PricePerKWh * e.config.ExportPriceRatio
	info.EmissionCost = weights.Emission * info.EmissionKg
	info.DegradationCost = weights.Degradation * degradation
	info.ViolationPenalty = weights.SafetyViolationPenalty * float64(len(result.Violations))
	info.UnmetPenalty = weights.UnmetDemandPenalty * info.UnmetKWh
	info.TotalCost = info.ImportCost - info.ExportRevenue + info.EmissionCost + info.DegradationCost +
		info.ViolationPenalty + info.UnmetPenalty
	for _, v := range result.Violations {
		info.Violations = append(info.Violations, v.Kind.String())
	}
	reward := -info.TotalCost

	e.index++
	e.counters.Steps++
	e.counters.UnmetKWh += info.UnmetKWh
	e.counters.Violations += len(result.Violations)
	e.accumulate(info, reward)

	done := e.counters.Steps >= e.config.EpisodeSteps || e.index >= e.feed.Len()
	if done {
		e.phase = phaseDone
		e.summary.Steps = e.counters.Steps
		e.summary.EVSuccessRate = e.fleet.Stats().SuccessRate()
		e.summary.Time = time.Now()
		e.logger.Debug("Episode done", "steps", e.counters.Steps, "reward", e.summary.TotalReward, "unmet_kwh", e.counters.UnmetKWh)
	}

	return StepResult{
		Observation: e.observe(),
		Reward:      reward,
		Done:        done,
		Info:        info,
	}, nil
}

// Counters returns the running totals of the current episode.
func (e *Environment) Counters() Counters {
	return e.counters
}

// EpisodeSummary returns the totals of the current episode. Steps and EVSuccessRate are only set once it is done.
func (e *Environment) EpisodeSummary() telemetry.EpisodeSummary {
	return e.summary
}

// Batteries returns a copy of the current battery states.
func (e *Environment) Batteries() []battery.State {
	return append([]battery.State(nil), e.batteries...)
}

func (e *Environment) Done() bool {
	return e.phase == phaseDone
}

func (e *Environment) accumulate(info telemetry.StepDiagnostics, reward float64) {
	e.summary.TotalReward += reward
	e.summary.TotalCost += info.TotalCost
	e.summary.ImportCost += info.ImportCost
	e.summary.ExportRevenue += info.ExportRevenue
	e.summary.EmissionKg += info.EmissionKg
	e.summary.DegradationCost += info.DegradationCost
	e.summary.UnmetKWh += info.UnmetKWh
	e.summary.Violations += len(info.Violations)
}

// scaleAction maps a normalised action onto power set points. Values outside [-1, 1] are passed through so that the
// supervisor sees, and records, what was asked for.
func (e *Environment) scaleAction(action []float64) safety.Action {
	limits := e.config.Safety
	n := len(e.config.Batteries)

	scaled := safety.Action{StorageKW: make([]float64, n)}
	for i := 0; i < n; i++ {
		a := action[i]
		if a >= 0 {
			scaled.StorageKW[i] = a * limits.Storage[i].MaxDischargeKW
		} else {
			scaled.StorageKW[i] = a * limits.Storage[i].MaxChargeKW
		}
		scaled.StorageKW[i] = e.energyLimit(i, scaled.StorageKW[i])
	}

	scaled.EVKW = (action[n] + 1) / 2 * limits.EVMaxKW
	if g := action[n+1]; g >= 0 {
		scaled.GridKW = g * limits.GridImportKW
	} else {
		scaled.GridKW = g * limits.GridExportKW
	}
	scaled.Curtailment = (action[n+2] + 1) / 2
	return scaled
}

// energyLimit bounds a storage set point to the energy the unit can actually deliver or absorb within the step.
func (e *Environment) energyLimit(i int, powerKW float64) float64 {
	s := e.batteries[i]
	usable := battery.UsableCapacityKWh(e.config.Batteries[i], s)
	maxDischarge := s.SoC * usable / e.stepHours
	maxCharge := (1 - s.SoC) * usable / e.stepHours
	if powerKW > maxDischarge {
		return maxDischarge
	}
	if powerKW < -maxCharge {
		return -maxCharge
	}
	return powerKW
}

func (e *Environment) supervisorObservation(sample feed.Sample) safety.Observation {
	obs := safety.Observation{
		Storage:    make([]safety.StorageStatus, len(e.batteries)),
		EVAcceptKW: e.fleet.AcceptablePowerKW(),
		SolarKW:    sample.SolarKW,
		WindKW:     sample.WindKW,
		LoadKW:     sample.LoadKW,
	}
	for i, s := range e.batteries {
		obs.Storage[i] = safety.StorageStatus{SoC: s.SoC, TemperatureC: s.TemperatureC}
	}
	return obs
}

// settle returns the grid exchange, curtailment and unmet demand once the fleet's actual draw is known. The fleet
// can draw marginally less than it was offered, any surplus is curtailed first.
func (e *Environment) settle(sample feed.Sample, action safety.Action, evKW, unmetKW float64) (float64, float64, float64) {
	limits := e.config.Safety
	renewable := sample.RenewableKW()
	curtailment := action.Curtailment

	storage := 0.0
	for _, p := range action.StorageKW {
		storage += p
	}
	grid := sample.LoadKW + evKW - renewable*(1-curtailment) - storage - unmetKW

	if grid < -limits.GridExportKW && renewable > 0 {
		extra := math.Min(-limits.GridExportKW-grid, renewable*(1-curtailment))
		curtailment = math.Min(curtailment+extra/renewable, 1)
		grid += extra
	}
	if grid > limits.GridImportKW {
		unmetKW += grid - limits.GridImportKW
		grid = limits.GridImportKW
	}
	return grid, curtailment, unmetKW
}

func (e *Environment) timeAt(index int) time.Time {
	return timeutils.StepTime(e.feed.Start(), e.feed.Step(), index)
}
