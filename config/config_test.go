package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExample(t *testing.T) {
	cfg, err := Read("../config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Feed.Step)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Feed.Start.UTC())
	assert.Len(t, cfg.Environment.Batteries, 2)
	assert.Equal(t, "small", cfg.Environment.Batteries[1].Name)
	assert.Len(t, cfg.Environment.Fleet.ArrivalRate.Points, 5)
	assert.Equal(t, 0.5, cfg.Environment.Safety.Storage[0].DeratingFactor)
	assert.Equal(t, []int{64, 64}, cfg.Training.HiddenSizes)
	assert.True(t, cfg.Training.AnnealLearningRate)
	require.NotNil(t, cfg.Diagnostics.Baseline)
	assert.Equal(t, 0.2, cfg.Diagnostics.Baseline.ReserveSoC)
	require.NotNil(t, cfg.Diagnostics.Supabase)
	assert.Equal(t, 5, cfg.Diagnostics.Supabase.UploadIntervalSecs)
}

func TestReadRejects(t *testing.T) {
	example, err := os.ReadFile("../config.example.yaml")
	require.NoError(t, err)

	type subTest struct {
		name    string
		replace [2]string
	}

	subTests := []subTest{
		{"unknown field", [2]string{"randomStart: true", "randomStart: true\n  randomEnd: true"}},
		{"fleet step disagrees with feed", [2]string{"stepHours: 0.25", "stepHours: 0.5"}},
		{"missing storage limits", [2]string{"      - {maxChargeKW: 50", "      # {maxChargeKW: 50"}},
		{"soc floor above ceiling", [2]string{"socMin: 0.1, socMax: 0.95", "socMin: 0.96, socMax: 0.95"}},
		{"arrival curve not spanning the day", [2]string{"- {x: 24, y: 0.1}", "- {x: 20, y: 0.1}"}},
		{"minibatch larger than buffer", [2]string{"minibatchSize: 256", "minibatchSize: 4096"}},
		{"battery soh floor of one", [2]string{"minSoH: 0.7", "minSoH: 1"}},
		{"baseline reserve above target", [2]string{"reserveSoC: 0.2", "reserveSoC: 0.95"}},
		{"baseline cheap price above peak", [2]string{"cheapPricePerKWh: 0.08", "cheapPricePerKWh: 0.5"}},
		{"no upload interval", [2]string{"uploadIntervalSecs: 5", "uploadIntervalSecs: 0"}},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			modified := strings.Replace(string(example), st.replace[0], st.replace[1], 1)
			require.NotEqual(t, string(example), modified)

			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(modified), 0o644))
			_, err := Read(path)
			assert.Error(t, err)
		})
	}
}

func TestValidationErrorsWrapErrInvalid(t *testing.T) {
	cfg, err := Read("../config.example.yaml")
	require.NoError(t, err)

	cfg.Environment.Reward.UnmetDemandPenalty = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
