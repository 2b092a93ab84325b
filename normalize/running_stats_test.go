package normalize

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/cepro/gridrl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func mustNew(t *testing.T, size int) *RunningStats {
	r, err := New(size, 1e-8, 10)
	require.NoError(t, err)
	return r
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(0, 1e-8, 10)
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = New(2, 0, 10)
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = New(2, 1e-8, math.NaN())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestUpdateMatchesBatchStatistics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := mustNew(t, 2)

	var xs, ys []float64
	for i := 0; i < 1000; i++ {
		x := 5 + 2*rng.NormFloat64()
		y := -100 + 30*rng.NormFloat64()
		xs = append(xs, x)
		ys = append(ys, y)
		r.Update([]float64{x, y})
	}

	mean := r.Mean()
	variance := r.Variance()
	xMean, xStd := stat.PopMeanStdDev(xs, nil)
	yMean, yStd := stat.PopMeanStdDev(ys, nil)
	assert.InDelta(t, xMean, mean[0], 1e-9)
	assert.InDelta(t, yMean, mean[1], 1e-9)
	assert.InDelta(t, xStd*xStd, variance[0], 1e-9)
	assert.InDelta(t, yStd*yStd, variance[1], 1e-6)
	assert.Equal(t, 1000.0, r.Count())
}

func TestMergeMatchesSequentialUpdates(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	sequential := mustNew(t, 3)
	parts := []*RunningStats{mustNew(t, 3), mustNew(t, 3), mustNew(t, 3)}

	for p, part := range parts {
		for i := 0; i < 100*(p+1); i++ {
			x := []float64{rng.Float64(), 10 * rng.NormFloat64(), float64(p)}
			part.Update(x)
			sequential.Update(x)
		}
	}

	merged := mustNew(t, 3)
	for _, part := range parts {
		merged.Merge(part)
	}
	merged.Merge(mustNew(t, 3))

	assert.Equal(t, sequential.Count(), merged.Count())
	assert.InDeltaSlice(t, sequential.Mean(), merged.Mean(), 1e-9)
	assert.InDeltaSlice(t, sequential.Variance(), merged.Variance(), 1e-9)
}

func TestNormalize(t *testing.T) {
	r := mustNew(t, 2)
	for _, x := range [][]float64{{1, 100}, {3, 100}} {
		r.Update(x)
	}

	type subTest struct {
		name     string
		input    []float64
		expected []float64
	}

	subTests := []subTest{
		{"at mean", []float64{2, 100}, []float64{0, 0}},
		{"one std", []float64{3, 100}, []float64{1, 0}},
		{"clipped", []float64{50, 100}, []float64{10, 0}},
		{"constant dimension clipped", []float64{2, 101}, []float64{0, 10}},
		{"negative clipped", []float64{-50, 0}, []float64{-10, -10}},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			assert.InDeltaSlice(t, st.expected, r.Normalize(st.input), 1e-6)
		})
	}

	// normalizing never changes the statistics
	assert.Equal(t, 2.0, r.Count())
}

func TestNormalizeBeforeAnySamples(t *testing.T) {
	r := mustNew(t, 2)
	assert.InDeltaSlice(t, []float64{3, -4}, r.Normalize([]float64{3, -4}), 1e-6)
}

func TestCloneIsIndependent(t *testing.T) {
	r := mustNew(t, 1)
	r.Update([]float64{1})
	clone := r.Clone()
	clone.Update([]float64{100})

	assert.Equal(t, 1.0, r.Count())
	assert.Equal(t, []float64{1}, r.Mean())
	assert.Equal(t, 2.0, clone.Count())
	assert.Equal(t, 0.0, r.Empty().Count())
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := mustNew(t, 2)
	r.Update([]float64{1, 2})
	r.Update([]float64{3, 5})

	restored, err := FromSnapshot(r.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, r.Snapshot(), restored.Snapshot())
	assert.Equal(t, r.Normalize([]float64{2, 2}), restored.Normalize([]float64{2, 2}))

	_, err = FromSnapshot(Snapshot{Mean: []float64{1}, M2: []float64{1, 2}, Epsilon: 1e-8, Clip: 5})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestConcurrentUpdates(t *testing.T) {
	r := mustNew(t, 1)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Update([]float64{1})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4000.0, r.Count())
	assert.InDelta(t, 1, r.Mean()[0], 1e-12)
}
