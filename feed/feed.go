package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/cepro/gridrl/config"
)

// Sample is one interval of exogenous conditions, in physical units.
type Sample struct {
	SolarKW        float64 `mapstructure:"solar_kw"`
	WindKW         float64 `mapstructure:"wind_kw"`
	LoadKW         float64 `mapstructure:"load_kw"`
	PricePerKWh    float64 `mapstructure:"price_per_kwh"`
	CarbonKgPerKWh float64 `mapstructure:"carbon_kg_per_kwh"`
}

// RenewableKW returns the combined solar and wind generation.
func (s Sample) RenewableKW() float64 {
	return s.SolarKW + s.WindKW
}

// Feed is a random-access sequence of samples of known length. Sample i covers the interval starting at
// Start() + i*Step().
type Feed interface {
	Len() int
	At(i int) Sample
	Start() time.Time
	Step() time.Duration
}

// Series is an in-memory Feed. Everything is held in memory so that reading a sample never blocks.
type Series struct {
	start   time.Time
	step    time.Duration
	samples []Sample
}

// NewSeries validates and wraps the given samples. The slice is copied.
func NewSeries(start time.Time, step time.Duration, samples []Sample) (*Series, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: feed step must be positive", config.ErrInvalid)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: feed has no samples", config.ErrInvalid)
	}
	for i, s := range samples {
		err := s.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: sample %d: %v", config.ErrInvalid, i, err)
		}
	}
	return &Series{
		start:   start,
		step:    step,
		samples: append([]Sample(nil), samples...),
	}, nil
}

func (s *Series) Len() int {
	return len(s.samples)
}

// At returns the sample at index `i`, which must be in [0, Len()).
func (s *Series) At(i int) Sample {
	return s.samples[i]
}

func (s *Series) Start() time.Time {
	return s.start
}

func (s *Series) Step() time.Duration {
	return s.step
}

func (s Sample) validate() error {
	values := []float64{s.SolarKW, s.WindKW, s.LoadKW, s.PricePerKWh, s.CarbonKgPerKWh}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value")
		}
	}
	if s.SolarKW < 0 || s.WindKW < 0 || s.LoadKW < 0 {
		return fmt.Errorf("negative generation or load")
	}
	if s.CarbonKgPerKWh < 0 {
		return fmt.Errorf("negative carbon intensity")
	}
	return nil
}
