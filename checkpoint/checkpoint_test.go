package checkpoint

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cepro/gridrl/nn"
	"github.com/cepro/gridrl/normalize"
	"github.com/cepro/gridrl/rng"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCheckpoint(t *testing.T) Checkpoint {
	r := rng.New(3)
	policy, err := nn.NewGaussianPolicy(4, 2, []int{8}, -5, 1, -0.5, r)
	require.NoError(t, err)
	value, err := nn.NewValueFunction(4, []int{8}, r)
	require.NoError(t, err)
	normalizer, err := normalize.New(4, 1e-8, 10)
	require.NoError(t, err)
	normalizer.Update([]float64{1, 2, 3, 4})
	normalizer.Update([]float64{2, 2, 1, 0})

	c := Capture(uuid.New(), policy, value, normalizer)
	c.Iteration = 7
	c.TotalSteps = 7000
	best := -12.5
	c.BestMeanReward = &best
	return c
}

func TestSaveAndLoad(t *testing.T) {
	c := testCheckpoint(t)
	path := filepath.Join(t.TempDir(), "nested", "latest.json")

	require.NoError(t, Save(path, c))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, c.ID, loaded.ID)
	assert.Equal(t, c.RunID, loaded.RunID)
	assert.Equal(t, 7, loaded.Iteration)
	assert.Equal(t, 7000, loaded.TotalSteps)
	assert.Equal(t, -12.5, *loaded.BestMeanReward)
	assert.Equal(t, c.Policy.Params, loaded.Policy.Params)
	assert.Equal(t, c.Value.Params, loaded.Value.Params)

	policy, value, normalizer, err := loaded.Restore()
	require.NoError(t, err)
	obs := normalizer.Normalize([]float64{1, 1, 1, 1})
	assert.Equal(t, 2, policy.ActionSize())
	assert.Equal(t, c.Normalizer.Mean, normalizer.Mean())

	original, originalValue, originalNormalizer, err := c.Restore()
	require.NoError(t, err)
	assert.Equal(t, originalNormalizer.Normalize([]float64{1, 1, 1, 1}), obs)
	assert.Equal(t, originalValue.Estimate(obs), value.Estimate(obs))
	expected, _ := original.Act(obs, true, nil)
	actual, _ := policy.Act(obs, true, nil)
	assert.Equal(t, expected, actual)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestSaveRefusesNonFiniteParameters(t *testing.T) {
	c := testCheckpoint(t)
	c.Value.Params[3] = math.NaN()
	path := filepath.Join(t.TempDir(), "bad.json")

	assert.ErrorIs(t, Save(path, c), ErrCorrupt)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadErrors(t *testing.T) {
	type subTest struct {
		name     string
		contents string
		expected error
	}

	subTests := []subTest{
		{"not json", "{", ErrCorrupt},
		{"future version", `{"version": 99}`, ErrUnsupportedVersion},
		{"missing networks", `{"version": 1}`, ErrCorrupt},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checkpoint.json")
			require.NoError(t, os.WriteFile(path, []byte(st.contents), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, st.expected)
		})
	}
}
