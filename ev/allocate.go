package ev

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Allocation is the power given to one vehicle for a step.
type Allocation struct {
	VehicleID uuid.UUID
	PowerKW   float64
}

// candidate is a connected vehicle that can take power this step.
type candidate struct {
	v          *Vehicle
	capacityKW float64 // the most the vehicle can take this step
	minimumKW  float64
	urgency    float64 // kW needed on average to finish by the deadline
	powerKW    float64
}

// allocation is the outcome of splitting the available power over the connected vehicles.
type allocation struct {
	candidates []*candidate
	unusedKW   float64
	deficit    bool // the minimum guarantees could not all be met
}

// allocate splits `availableKW` across the candidates. When the site can cover every vehicle's minimum rate, each
// vehicle first receives its minimum and the surplus is shared in proportion to urgency, earliest deadline first.
// Otherwise the available power is shared pro-rata by the minimums. Power that nobody can absorb is returned as unused.
func allocate(candidates []*candidate, availableKW float64) allocation {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].v, candidates[j].v
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.ID.String() < b.ID.String()
	})

	totalMinimum := 0.0
	for _, c := range candidates {
		totalMinimum += c.minimumKW
	}

	if totalMinimum > availableKW {
		for _, c := range candidates {
			c.powerKW = availableKW * c.minimumKW / totalMinimum
		}
		return allocation{candidates: candidates, deficit: true}
	}

	remaining := availableKW
	for _, c := range candidates {
		c.powerKW = c.minimumKW
		remaining -= c.minimumKW
	}

	open := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.capacityKW-c.powerKW > 0 {
			open = append(open, c)
		}
	}

	for remaining > 1e-12 && len(open) > 0 {
		open, remaining = allocateRound(open, remaining)
	}

	return allocation{candidates: candidates, unusedKW: math.Max(remaining, 0)}
}

// allocateRound shares `remaining` over the open candidates in proportion to urgency. If any candidate's share
// exceeds its headroom it is filled to capacity and the rest is left for the next round. Otherwise every share
// fits and the power is fully used.
func allocateRound(open []*candidate, remaining float64) ([]*candidate, float64) {
	weightSum := 0.0
	for _, c := range open {
		weightSum += weight(c)
	}

	saturated := false
	for _, c := range open {
		share := remaining * weight(c) / weightSum
		if share >= c.capacityKW-c.powerKW {
			saturated = true
		}
	}

	if !saturated {
		for _, c := range open {
			c.powerKW += remaining * weight(c) / weightSum
		}
		return nil, 0
	}

	next := open[:0]
	consumed := 0.0
	for _, c := range open {
		share := remaining * weight(c) / weightSum
		headroom := c.capacityKW - c.powerKW
		if share >= headroom {
			c.powerKW = c.capacityKW
			consumed += headroom
		} else {
			next = append(next, c)
		}
	}
	return next, remaining - consumed
}

// weight returns the candidate's urgency, falling back to an equal share when no candidate is urgent.
func weight(c *candidate) float64 {
	if c.urgency > 0 {
		return c.urgency
	}
	return 1e-9
}

// newCandidate returns the candidate for `v` for a step of `stepHours` starting at `t`.
func newCandidate(v *Vehicle, t time.Time, stepHours, maxRateKW, minRateKW float64) *candidate {
	remaining := v.RemainingKWh()
	capacity := math.Min(maxRateKW, remaining/stepHours)
	hoursLeft := math.Max(v.HoursLeft(t), stepHours)
	return &candidate{
		v:          v,
		capacityKW: capacity,
		minimumKW:  math.Min(minRateKW, capacity),
		urgency:    remaining / hoursLeft,
	}
}
