// Package rng holds the seedable random sources that are threaded through the environment, the EV fleet and the policy.
//
// Nothing in this module reads from a global random source: every component that needs randomness is handed a
// *rand.Rand so that runs are reproducible from a seed.
package rng

import (
	"math/rand"
)

// New returns a random stream seeded with `seed`.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Derive draws a fresh seed from `r`, used to give independent workers and episodes their own streams.
func Derive(r *rand.Rand) int64 {
	return r.Int63()
}

// Source adapts a *rand.Rand to the Source interface that gonum's distuv distributions sample from.
type Source struct {
	r *rand.Rand
}

// NewSource wraps `r`. Draws made through the returned Source advance `r`.
func NewSource(r *rand.Rand) Source {
	return Source{r: r}
}

func (s Source) Uint64() uint64 {
	return s.r.Uint64()
}

func (s Source) Seed(seed uint64) {
	s.r.Seed(int64(seed))
}
