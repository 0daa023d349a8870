package disruption

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region controller
// Controller decides, frame by frame, whether the caller should compute fresh
// optical flow, reuse the last field, or use a substitute, while a two-state
// Markov chain evolves the simulated perception state.
//
// A Controller is not safe for concurrent use. Callers that share one must
// hold a lock around each Step/RecordResult pair.
type Controller struct {
	model    TransitionModel
	interval int
	seed     uint64
	sampler  Sampler
	policy   SubstitutionPolicy

	state State
	frame int
	cache *flow.Field
	stats Stats
}

// Option customizes a Controller at construction.
type Option func(*Controller)

// WithSampler replaces the seeded categorical sampler.
func WithSampler(s Sampler) Option {
	return func(c *Controller) { c.sampler = s }
}

// New validates cfg and returns a controller positioned before frame 0.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	if cfg.SamplingInterval <= 0 {
		return nil, fmt.Errorf("%w: sampling interval must be positive, got %d", ErrInvalidConfig, cfg.SamplingInterval)
	}
	if cfg.InitialState != Normal && cfg.InitialState != Disrupted {
		return nil, fmt.Errorf("%w: initial state %s", ErrInvalidConfig, cfg.InitialState)
	}

	c := &Controller{
		model:    cfg.Model,
		interval: cfg.SamplingInterval,
		policy:   cfg.Policy,
		state:    cfg.InitialState,
	}
	if cfg.Seed != nil {
		c.seed = uint64(*cfg.Seed)
	} else {
		c.seed = uint64(time.Now().UnixNano())
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sampler == nil {
		c.sampler = NewCategoricalSampler(c.seed)
	}
	if c.policy == nil {
		c.policy = ZeroPolicy{}
	}
	return c, nil
}

// #endregion controller

// #region step
// Step advances the chain by one transition and returns the directive for the
// frame pair. The frame counter is incremented after the decision, so the
// first call handles frame 0, which is always a sampling frame.
//
// Step fails with ErrShapeMismatch when prev and curr differ in size, or when
// a masked frame would reuse a cached field of another size. A failed Step
// leaves the controller unchanged.
func (c *Controller) Step(prev, curr flow.Frame) (Directive, error) {
	shape := curr.Shape()
	if err := flow.CheckShapes(prev.Shape(), shape); err != nil {
		return Directive{}, fmt.Errorf("frame %d: %w", c.frame, err)
	}
	sampling := c.frame%c.interval == 0
	if !sampling && c.cache != nil {
		if err := flow.CheckShapes(c.cache.Shape(), shape); err != nil {
			return Directive{}, fmt.Errorf("frame %d cached field: %w", c.frame, err)
		}
	}

	next := c.sampler.Draw(c.model.Row(c.state))
	if next < 0 || next >= NumStates {
		return Directive{}, fmt.Errorf("frame %d: sampler drew state %d outside the chain", c.frame, next)
	}
	c.state = State(next)

	d := Directive{Frame: c.frame, State: c.state, Sampling: sampling}
	switch {
	case sampling && c.state == Normal:
		d.Kind = ComputeFresh
	case sampling:
		sub := c.policy.Substitute(shape, c.cache)
		c.cache = &sub
		d.Kind = Substitute
		d.Field = sub
	case c.cache != nil:
		d.Kind = ReuseCached
		d.Field = *c.cache
	default:
		d.Kind = ComputeFresh
	}

	c.frame++
	c.count(d)
	return d, nil
}

func (c *Controller) count(d Directive) {
	c.stats.Frames++
	if d.State == Disrupted {
		c.stats.Disrupted++
	}
	switch d.Kind {
	case ComputeFresh:
		c.stats.Fresh++
	case ReuseCached:
		c.stats.Reused++
	case Substitute:
		c.stats.Substituted++
	}
}

// #endregion step

// #region record
// RecordResult caches the field the caller actually used for the last frame.
// It must be called after every directive; the cache is overwritten
// unconditionally.
func (c *Controller) RecordResult(field flow.Field) {
	c.cache = &field
}

// DropCache forgets the cached field, so the next masked frame computes
// fresh. Callers use it when the stream changes size.
func (c *Controller) DropCache() {
	c.cache = nil
}

// #endregion record

// #region accessors
// CurrentState returns the perception state after the most recent Step.
func (c *Controller) CurrentState() State { return c.state }

// FrameCount is the number of frames processed so far.
func (c *Controller) FrameCount() int { return c.frame }

// Interval is the sampling interval.
func (c *Controller) Interval() int { return c.interval }

// Model returns the transition matrix.
func (c *Controller) Model() TransitionModel { return c.model }

// Seed is the seed of the default sampler: the configured one, or the clock
// value drawn at construction. It is meaningless when WithSampler was used.
func (c *Controller) Seed() uint64 { return c.seed }

// Policy returns the substitution policy in use.
func (c *Controller) Policy() SubstitutionPolicy { return c.policy }

// Cached returns the cached field, if any.
func (c *Controller) Cached() (flow.Field, bool) {
	if c.cache == nil {
		return flow.Field{}, false
	}
	return *c.cache, true
}

// Stats returns decision counters.
func (c *Controller) Stats() Stats { return c.stats }

// #endregion accessors
