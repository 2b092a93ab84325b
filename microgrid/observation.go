package microgrid

import (
	"math"

	timeutils "github.com/cepro/gridrl/time_utils"
)

const (
	batteryFeatures  = 3 // SoC, SoH, temperature
	fleetFeatures    = 4 // occupancy, remaining energy, acceptable power, hours to the nearest deadline
	currentFeatures  = 5 // solar, wind, load, price, carbon
	forecastFeatures = 2 // net load and price for each step ahead
	clockFeatures    = 3 // sin and cos of the hour of day, episode progress
)

// ObservationSize returns the length of the observation vector.
func (e *Environment) ObservationSize() int {
	return batteryFeatures*len(e.config.Batteries) + fleetFeatures + currentFeatures +
		forecastFeatures*e.config.ForecastSteps + clockFeatures
}

// observe assembles the observation for the current interval. It holds everything the policy needs, including a
// forecast window, so that no memory beyond the observation is required. Once the feed is exhausted the last sample
// stands in for the missing ones.
func (e *Environment) observe() []float64 {
	obs := make([]float64, 0, e.ObservationSize())

	for _, s := range e.batteries {
		obs = append(obs, s.SoC, s.SoH, s.TemperatureC)
	}

	t := e.timeAt(e.index)
	snapshot := e.fleet.Snapshot(t)
	obs = append(obs, snapshot.OccupancyFraction, snapshot.RemainingKWh, e.fleet.AcceptablePowerKW(), snapshot.MinHoursToDeadline)

	current := e.feed.At(e.clampIndex(e.index))
	obs = append(obs, current.SolarKW, current.WindKW, current.LoadKW, current.PricePerKWh, current.CarbonKgPerKWh)

	for k := 1; k <= e.config.ForecastSteps; k++ {
		ahead := e.feed.At(e.clampIndex(e.index + k))
		obs = append(obs, ahead.LoadKW-ahead.RenewableKW(), ahead.PricePerKWh)
	}

	angle := 2 * math.Pi * timeutils.HourOfDay(t) / 24
	progress := float64(e.counters.Steps) / float64(e.config.EpisodeSteps)
	obs = append(obs, math.Sin(angle), math.Cos(angle), progress)

	return obs
}

func (e *Environment) clampIndex(i int) int {
	if i >= e.feed.Len() {
		return e.feed.Len() - 1
	}
	return i
}
