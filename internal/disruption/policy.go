package disruption

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region policy
// SubstitutionPolicy produces the synthetic field issued on a sampling frame
// while perception is disrupted. last is the cached field, or nil when
// nothing has been cached yet. The returned field must have the given shape.
type SubstitutionPolicy interface {
	Name() string
	Substitute(shape flow.Shape, last *flow.Field) flow.Field
}

// Policy names accepted by NewPolicy.
const (
	PolicyZero  = "zero"
	PolicyHold  = "hold"
	PolicyNoise = "noise"
)

// ZeroPolicy reports no motion at all.
type ZeroPolicy struct{}

func (ZeroPolicy) Name() string { return PolicyZero }

func (ZeroPolicy) Substitute(shape flow.Shape, _ *flow.Field) flow.Field {
	return flow.NewField(shape)
}

// HoldPolicy freezes perception on the last field. With nothing cached, or a
// cached field of another size, it falls back to a zero field.
type HoldPolicy struct{}

func (HoldPolicy) Name() string { return PolicyHold }

func (HoldPolicy) Substitute(shape flow.Shape, last *flow.Field) flow.Field {
	if last == nil || last.Shape() != shape {
		return flow.NewField(shape)
	}
	return last.Clone()
}

// NoisePolicy replaces motion with zero-mean Gaussian noise, simulating
// erratic perception.
type NoisePolicy struct {
	Sigma float64
	rng   *rand.Rand
}

// NewNoisePolicy seeds its own generator so that noise never perturbs the
// Markov chain's random sequence.
func NewNoisePolicy(sigma float64, seed uint64) *NoisePolicy {
	return &NoisePolicy{Sigma: sigma, rng: rand.New(rand.NewSource(seed))}
}

func (p *NoisePolicy) Name() string { return PolicyNoise }

func (p *NoisePolicy) Substitute(shape flow.Shape, _ *flow.Field) flow.Field {
	f := flow.NewField(shape)
	for i := range f.Vec {
		f.Vec[i] = float32(p.rng.NormFloat64() * p.Sigma)
	}
	return f
}

// PolicySeed derives the noise policy's seed from the chain seed, so that a
// recorded run seed reproduces both streams.
func PolicySeed(seed int64) uint64 {
	return uint64(seed) ^ 0x9e3779b97f4a7c15
}

// NewPolicy builds a policy by name. sigma and seed only apply to "noise".
func NewPolicy(name string, sigma float64, seed uint64) (SubstitutionPolicy, error) {
	switch name {
	case PolicyZero, "":
		return ZeroPolicy{}, nil
	case PolicyHold:
		return HoldPolicy{}, nil
	case PolicyNoise:
		if sigma <= 0 {
			return nil, fmt.Errorf("%w: noise sigma must be positive, got %g", ErrInvalidConfig, sigma)
		}
		return NewNoisePolicy(sigma, seed), nil
	}
	return nil, fmt.Errorf("%w: unknown substitution policy %q", ErrInvalidConfig, name)
}

// #endregion policy
