// Package normalize scales observations with running estimates of their mean and variance.
package normalize

import (
	"fmt"
	"math"
	"sync"

	"github.com/cepro/gridrl/config"
)

// RunningStats keeps a per-dimension count, mean and sum of squared deviations, updated one sample at a time with
// Welford's method. It is safe for concurrent use.
type RunningStats struct {
	mu      sync.Mutex
	count   float64
	mean    []float64
	m2      []float64
	epsilon float64
	clip    float64
}

// Snapshot is the persisted form of RunningStats.
type Snapshot struct {
	Count   float64   `json:"count"`
	Mean    []float64 `json:"mean"`
	M2      []float64 `json:"m2"`
	Epsilon float64   `json:"epsilon"`
	Clip    float64   `json:"clip"`
}

// New returns empty statistics for `size` dimensions. Normalized values are clipped to [-clip, clip].
func New(size int, epsilon, clip float64) (*RunningStats, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: normalizer needs at least one dimension", config.ErrInvalid)
	}
	if !(epsilon > 0) || !(clip > 0) {
		return nil, fmt.Errorf("%w: normalizer epsilon and clip must be positive", config.ErrInvalid)
	}
	return &RunningStats{
		mean:    make([]float64, size),
		m2:      make([]float64, size),
		epsilon: epsilon,
		clip:    clip,
	}, nil
}

func (r *RunningStats) Size() int {
	return len(r.mean)
}

func (r *RunningStats) Count() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Update folds one sample into the statistics.
func (r *RunningStats) Update(x []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.update(x)
}

func (r *RunningStats) update(x []float64) {
	r.count++
	for i := range r.mean {
		delta := x[i] - r.mean[i]
		r.mean[i] += delta / r.count
		r.m2[i] += delta * (x[i] - r.mean[i])
	}
}

// Merge folds another set of statistics into this one as if its samples had been seen here, using the parallel
// form of Welford's update. Merging in a fixed order gives a deterministic result.
func (r *RunningStats) Merge(other *RunningStats) {
	other.mu.Lock()
	count := other.count
	mean := append([]float64(nil), other.mean...)
	m2 := append([]float64(nil), other.m2...)
	other.mu.Unlock()

	if count == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.count + count
	for i := range r.mean {
		delta := mean[i] - r.mean[i]
		r.mean[i] += delta * count / total
		r.m2[i] += m2[i] + delta*delta*r.count*count/total
	}
	r.count = total
}

// Variance returns the population variance of each dimension.
func (r *RunningStats) Variance() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.variance()
}

func (r *RunningStats) variance() []float64 {
	variance := make([]float64, len(r.m2))
	if r.count == 0 {
		for i := range variance {
			variance[i] = 1
		}
		return variance
	}
	for i := range r.m2 {
		variance[i] = r.m2[i] / r.count
	}
	return variance
}

func (r *RunningStats) Mean() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.mean...)
}

// Normalize returns clip((x - mean) / sqrt(variance + epsilon)) without changing the statistics. Before any
// sample has been seen the variance is taken to be one.
func (r *RunningStats) Normalize(x []float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	variance := r.variance()
	out := make([]float64, len(r.mean))
	for i := range r.mean {
		v := (x[i] - r.mean[i]) / math.Sqrt(variance[i]+r.epsilon)
		out[i] = math.Max(-r.clip, math.Min(r.clip, v))
	}
	return out
}

// Clone returns an independent copy of the statistics.
func (r *RunningStats) Clone() *RunningStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &RunningStats{
		count:   r.count,
		mean:    append([]float64(nil), r.mean...),
		m2:      append([]float64(nil), r.m2...),
		epsilon: r.epsilon,
		clip:    r.clip,
	}
}

// Empty returns statistics of the same shape and settings with no samples.
func (r *RunningStats) Empty() *RunningStats {
	return &RunningStats{
		mean:    make([]float64, len(r.mean)),
		m2:      make([]float64, len(r.m2)),
		epsilon: r.epsilon,
		clip:    r.clip,
	}
}

func (r *RunningStats) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Count:   r.count,
		Mean:    append([]float64(nil), r.mean...),
		M2:      append([]float64(nil), r.m2...),
		Epsilon: r.epsilon,
		Clip:    r.clip,
	}
}

// FromSnapshot restores statistics saved with Snapshot.
func FromSnapshot(s Snapshot) (*RunningStats, error) {
	stats, err := New(len(s.Mean), s.Epsilon, s.Clip)
	if err != nil {
		return nil, err
	}
	if len(s.M2) != len(s.Mean) || s.Count < 0 {
		return nil, fmt.Errorf("%w: normalizer snapshot is inconsistent", config.ErrInvalid)
	}
	stats.count = s.Count
	copy(stats.mean, s.Mean)
	copy(stats.m2, s.M2)
	return stats, nil
}
