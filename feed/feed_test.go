package feed

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cepro/gridrl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	type subTest struct {
		name    string
		step    time.Duration
		samples []Sample
		wantErr bool
	}

	subTests := []subTest{
		{"valid", 15 * time.Minute, []Sample{{SolarKW: 1, LoadKW: 2, PricePerKWh: 0.2}}, false},
		{"negative price is allowed", 15 * time.Minute, []Sample{{LoadKW: 2, PricePerKWh: -0.05}}, false},
		{"empty", 15 * time.Minute, nil, true},
		{"zero step", 0, []Sample{{LoadKW: 1}}, true},
		{"negative load", 15 * time.Minute, []Sample{{LoadKW: -1}}, true},
		{"nan solar", 15 * time.Minute, []Sample{{SolarKW: math.NaN()}}, true},
		{"inf price", 15 * time.Minute, []Sample{{PricePerKWh: math.Inf(1)}}, true},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			s, err := NewSeries(start, st.step, st.samples)
			if st.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(st.samples), s.Len())
			assert.Equal(t, start, s.Start())
			assert.Equal(t, st.step, s.Step())
		})
	}
}

func TestNewSeriesCopiesSamples(t *testing.T) {
	samples := []Sample{{LoadKW: 5}}
	s, err := NewSeries(time.Time{}, time.Hour, samples)
	require.NoError(t, err)

	samples[0].LoadKW = 50
	assert.Equal(t, 5.0, s.At(0).LoadKW)
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	content := "timestamp,solar_kw,wind_kw,load_kw,price_per_kwh,carbon_kg_per_kwh\n" +
		"2024-06-03T00:00:00Z,0,12.5,40,0.15,0.21\n" +
		"2024-06-03T00:15:00Z,0,11,38.5,0.14,0.2\n" +
		"2024-06-03T00:30:00Z,3.25,10,37,0.12,0.19\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s, err := ReadCSV(path, start, 15*time.Minute)
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, Sample{SolarKW: 0, WindKW: 12.5, LoadKW: 40, PricePerKWh: 0.15, CarbonKgPerKWh: 0.21}, s.At(0))
	assert.Equal(t, 3.25, s.At(2).SolarKW)
	assert.InDelta(t, 13.25, s.At(2).RenewableKW(), 1e-12)
}

func TestReadCSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	content := "solar_kw,wind_kw,load_kw,price_per_kwh\n1,2,3,4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadCSV(path, time.Time{}, time.Hour)
	assert.ErrorContains(t, err, "carbon_kg_per_kwh")
}

func TestReadCSVRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	content := "solar_kw,wind_kw,load_kw,price_per_kwh,carbon_kg_per_kwh\n1,2,-3,4,0.1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadCSV(path, time.Time{}, time.Hour)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
