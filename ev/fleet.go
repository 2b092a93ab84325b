package ev

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/rng"
	timeutils "github.com/cepro/gridrl/time_utils"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"
)

type Config = config.FleetConfig

// Departure records a vehicle leaving the site.
type Departure struct {
	VehicleID    uuid.UUID
	DeliveredKWh float64
	RequiredKWh  float64
	Met          bool
}

// StepResult is the outcome of one scheduling step.
type StepResult struct {
	Allocations []Allocation
	AggregateKW float64 // total power drawn by the fleet
	UnusedKW    float64 // offered power that no vehicle could absorb
	Deficit     bool    // the per-vehicle minimums could not all be honoured
	AtRisk      []uuid.UUID
	Departures  []Departure
	Arrivals    int
}

// Stats accumulates the departure outcomes over an episode.
type Stats struct {
	Departed     int
	Satisfied    int
	DeliveredKWh float64
	ShortfallKWh float64
}

// SuccessRate returns the fraction of departed vehicles that left with their full energy requirement, or 1 if no
// vehicle has departed.
func (s Stats) SuccessRate() float64 {
	if s.Departed == 0 {
		return 1
	}
	return float64(s.Satisfied) / float64(s.Departed)
}

// Snapshot summarises the connected vehicles for an observation.
type Snapshot struct {
	Connected          int
	OccupancyFraction  float64
	RemainingKWh       float64
	MinHoursToDeadline float64 // zero when no vehicle is connected
}

// Fleet tracks the vehicles connected to the site's chargers and shares power among them.
type Fleet struct {
	config    Config
	stepHours float64
	rng       *rand.Rand
	vehicles  []*Vehicle
	stats     Stats
	logger    *slog.Logger
}

// NewFleet returns an empty fleet, or an error wrapping config.ErrInvalid.
func NewFleet(cfg Config) (*Fleet, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Fleet{
		config:    cfg,
		stepHours: cfg.StepHours,
		rng:       rand.New(rand.NewSource(0)),
		logger:    slog.Default().With("component", "ev_fleet"),
	}, nil
}

// Reset clears the site, takes `r` as the fleet's random stream, and samples the vehicles that arrive for the first
// interval starting at `start`.
func (f *Fleet) Reset(start time.Time, r *rand.Rand) {
	f.rng = r
	f.vehicles = f.vehicles[:0]
	f.stats = Stats{}
	f.arrive(start)
}

// Vehicles returns the connected vehicles. The caller must not modify them.
func (f *Fleet) Vehicles() []*Vehicle {
	return f.vehicles
}

func (f *Fleet) Stats() Stats {
	return f.stats
}

// AcceptablePowerKW returns the most power the connected vehicles could absorb in the next step.
func (f *Fleet) AcceptablePowerKW() float64 {
	total := 0.0
	for _, v := range f.vehicles {
		total += math.Min(f.config.MaxRateKW, v.RemainingKWh()/f.stepHours)
	}
	return total
}

func (f *Fleet) Snapshot(t time.Time) Snapshot {
	snapshot := Snapshot{Connected: len(f.vehicles)}
	if f.config.Chargers > 0 {
		snapshot.OccupancyFraction = float64(len(f.vehicles)) / float64(f.config.Chargers)
	}
	for i, v := range f.vehicles {
		snapshot.RemainingKWh += v.RemainingKWh()
		hours := math.Max(v.HoursLeft(t), 0)
		if i == 0 || hours < snapshot.MinHoursToDeadline {
			snapshot.MinHoursToDeadline = hours
		}
	}
	return snapshot
}

// Step shares `availableKW` among the connected vehicles for the interval starting at `t`, delivers the energy, lets
// vehicles whose deadline falls within the interval depart, and samples the arrivals for the next interval.
func (f *Fleet) Step(t time.Time, availableKW float64) StepResult {
	if math.IsNaN(availableKW) || availableKW < 0 {
		availableKW = 0
	}
	end := t.Add(time.Duration(f.stepHours * float64(time.Hour)))

	candidates := make([]*candidate, 0, len(f.vehicles))
	for _, v := range f.vehicles {
		candidates = append(candidates, newCandidate(v, t, f.stepHours, f.config.MaxRateKW, f.config.MinRateKW))
	}
	alloc := allocate(candidates, availableKW)

	result := StepResult{
		Allocations: make([]Allocation, 0, len(alloc.candidates)),
		UnusedKW:    alloc.unusedKW,
		Deficit:     alloc.deficit,
	}
	if alloc.deficit {
		f.logger.Debug("EV minimum rates not met", "available_kw", availableKW, "connected", len(f.vehicles))
	}

	for _, c := range alloc.candidates {
		result.Allocations = append(result.Allocations, Allocation{VehicleID: c.v.ID, PowerKW: c.powerKW})
		result.AggregateKW += c.powerKW
		if c.powerKW > 0 {
			c.v.EnergyDeliveredKWh += c.powerKW * f.stepHours
			c.v.Status = Charging
		}
		// at risk if the vehicle can no longer finish, even at full rate for the rest of its stay
		hoursAfter := math.Max(c.v.Deadline.Sub(end).Hours(), 0)
		if c.v.RemainingKWh() > f.config.MaxRateKW*hoursAfter+1e-9 {
			result.AtRisk = append(result.AtRisk, c.v.ID)
		}
	}

	connected := f.vehicles[:0]
	for _, v := range f.vehicles {
		if v.Deadline.After(end) {
			connected = append(connected, v)
			continue
		}
		v.Status = Departed
		met := v.RemainingKWh() <= 1e-6
		result.Departures = append(result.Departures, Departure{
			VehicleID:    v.ID,
			DeliveredKWh: v.EnergyDeliveredKWh,
			RequiredKWh:  v.EnergyRequiredKWh,
			Met:          met,
		})
		f.stats.Departed++
		f.stats.DeliveredKWh += v.EnergyDeliveredKWh
		f.stats.ShortfallKWh += v.RemainingKWh()
		if met {
			f.stats.Satisfied++
		}
	}
	f.vehicles = connected

	result.Arrivals = f.arrive(end)
	return result
}

// arrive samples the vehicles arriving for the interval starting at `t`, limited by the free chargers, and returns
// how many were connected.
func (f *Fleet) arrive(t time.Time) int {
	rate := f.config.ArrivalRate.ValueAt(timeutils.HourOfDay(t))
	if math.IsNaN(rate) {
		rate = 0
	}
	if !timeutils.IsWeekday(t) {
		rate *= f.config.WeekendArrivalScale
	}
	lambda := rate * f.stepHours
	if lambda <= 0 {
		return 0
	}

	src := rng.NewSource(f.rng)
	count := int(distuv.Poisson{Lambda: lambda, Src: src}.Rand())
	free := f.config.Chargers - len(f.vehicles)
	if count > free {
		count = free
	}

	energy := distuv.Normal{Mu: f.config.EnergyMeanKWh, Sigma: f.config.EnergyStdKWh, Src: src}
	dwell := distuv.Uniform{Min: f.config.DwellMinH, Max: f.config.DwellMaxH, Src: src}
	for i := 0; i < count; i++ {
		id, err := uuid.NewRandomFromReader(f.rng)
		if err != nil {
			panic(fmt.Sprintf("read vehicle id: %v", err)) // math/rand never fails to read
		}
		required := math.Min(math.Max(energy.Rand(), f.config.EnergyMinKWh), f.config.EnergyMaxKWh)
		hours := dwell.Rand()
		f.vehicles = append(f.vehicles, &Vehicle{
			ID:                id,
			Status:            Arrived,
			ArrivedAt:         t,
			Deadline:          t.Add(time.Duration(hours * float64(time.Hour))),
			EnergyRequiredKWh: required,
		})
	}
	return count
}
