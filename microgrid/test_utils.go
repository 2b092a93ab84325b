package microgrid

import (
	"math"
	"time"

	"github.com/cepro/gridrl/cartesian"
	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/feed"
)

// This file contains utilities to help with testing

// TestConfig returns a small but complete site: two batteries, a six charger EV fleet and a 15 minute step.
func TestConfig() Config {
	bess := config.BatteryConfig{
		CapacityKWh:                   400,
		MinSoH:                        0.7,
		CalendarFadePerHour:           2e-6,
		CycleFadeCoeff:                1e-7,
		DoDExponent:                   2,
		ThroughputExponent:            0.5,
		AmbientTempC:                  20,
		ThermalTimeConstantH:          2,
		HeatingCoeffCPerKW2:           0.0004,
		SafeTempMinC:                  5,
		SafeTempMaxC:                  35,
		DegradationCostPerKWh:         0.02,
		ThermalSurchargePerDegreeHour: 0.5,
	}
	small := bess
	small.Name = "small"
	small.CapacityKWh = 100
	bess.Name = "main"

	return Config{
		EpisodeSteps:     96,
		ForecastSteps:    4,
		RandomStart:      true,
		InitialSoCMin:    0.3,
		InitialSoCMax:    0.8,
		ExportPriceRatio: 0.5,
		Batteries:        []config.BatteryConfig{bess, small},
		Fleet: config.FleetConfig{
			Chargers:  6,
			MaxRateKW: 22,
			MinRateKW: 3.7,
			ArrivalRate: cartesian.Curve{Points: []cartesian.Point{
				{X: 0, Y: 0.1}, {X: 8, Y: 2}, {X: 12, Y: 0.5}, {X: 18, Y: 2.5}, {X: 24, Y: 0.1},
			}},
			WeekendArrivalScale: 0.6,
			EnergyMeanKWh:       25,
			EnergyStdKWh:        10,
			EnergyMinKWh:        5,
			EnergyMaxKWh:        70,
			DwellMinH:           1,
			DwellMaxH:           9,
			StepHours:           0.25,
		},
		Safety: config.SafetyConfig{
			Storage: []config.StorageLimits{
				{MaxChargeKW: 200, MaxDischargeKW: 200, SoCMin: 0.1, SoCMax: 0.95, TempMinC: 0, TempMaxC: 40, DeratingFactor: 0.5},
				{MaxChargeKW: 50, MaxDischargeKW: 50, SoCMin: 0.1, SoCMax: 0.95, TempMinC: 0, TempMaxC: 40, DeratingFactor: 0.5},
			},
			EVMaxKW:            100,
			GridImportKW:       400,
			GridExportKW:       250,
			BalanceToleranceKW: 1e-6,
		},
		Reward: config.RewardConfig{
			Cost:                   1,
			Emission:               0.05,
			Degradation:            1,
			UnmetDemandPenalty:     5,
			SafetyViolationPenalty: 0.1,
		},
	}
}

// TestFeed returns `days` of quarter-hourly samples with a solar bell, a two-peak load and a peak price tariff.
func TestFeed(days int) *feed.Series {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	step := 15 * time.Minute
	samples := make([]feed.Sample, 0, days*96)
	for i := 0; i < days*96; i++ {
		hour := float64(i%96) / 4
		solar := math.Max(0, 300*math.Sin(math.Pi*(hour-6)/12))
		wind := 40 + 30*math.Sin(float64(i)/37)
		load := 150 + 80*math.Exp(-math.Pow(hour-8, 2)/4) + 150*math.Exp(-math.Pow(hour-18.5, 2)/3)
		price := 0.12
		if hour >= 16 && hour < 19 {
			price = 0.35
		} else if hour < 6 {
			price = 0.07
		}
		samples = append(samples, feed.Sample{
			SolarKW:        solar,
			WindKW:         wind,
			LoadKW:         load,
			PricePerKWh:    price,
			CarbonKgPerKWh: 0.15 + 0.1*math.Cos(math.Pi*hour/12),
		})
	}
	series, err := feed.NewSeries(start, step, samples)
	if err != nil {
		panic(err)
	}
	return series
}
