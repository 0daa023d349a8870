package disruption

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region sampler
// Sampler draws an index from a discrete distribution. weights are
// non-negative and sum to 1. Implementations carry their own random source;
// a Controller never touches a process-wide generator.
type Sampler interface {
	Draw(weights []float64) int
}

// CategoricalSampler draws with gonum's categorical distribution over a
// seeded PCG source. The same seed yields the same sequence of draws.
type CategoricalSampler struct {
	src rand.Source
}

// NewCategoricalSampler returns a sampler seeded with seed.
func NewCategoricalSampler(seed uint64) *CategoricalSampler {
	return &CategoricalSampler{src: rand.NewSource(seed)}
}

// Draw returns an index in [0, len(weights)).
func (s *CategoricalSampler) Draw(weights []float64) int {
	return int(distuv.NewCategorical(weights, s.src).Rand())
}

// SamplerFunc adapts a function to Sampler. Handy for scripted tests.
type SamplerFunc func(weights []float64) int

// Draw calls fn.
func (fn SamplerFunc) Draw(weights []float64) int {
	return fn(weights)
}

// #endregion sampler
