package disruption

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region errors
var (
	// ErrInvalidModel is returned when the transition matrix is not row-stochastic.
	ErrInvalidModel = errors.New("invalid transition model")
	// ErrInvalidConfig is returned for a non-positive sampling interval or unknown state.
	ErrInvalidConfig = errors.New("invalid controller config")
	// ErrShapeMismatch is flow.ErrShapeMismatch, re-exported for callers of Step.
	ErrShapeMismatch = flow.ErrShapeMismatch
)

// #endregion errors

// #region state
// State is the simulated condition of motion perception.
type State int

const (
	Normal State = iota
	Disrupted
)

// NumStates is the size of the chain.
const NumStates = 2

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Disrupted:
		return "disrupted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState accepts "normal" or "disrupted" (case-insensitive).
func ParseState(v string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "normal", "":
		return Normal, nil
	case "disrupted":
		return Disrupted, nil
	}
	return 0, fmt.Errorf("%w: unknown perception state %q", ErrInvalidConfig, v)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// #endregion state

// #region directive
// DirectiveKind tells the caller what to do with the current frame.
type DirectiveKind int

const (
	// ComputeFresh: run the flow engine on (prev, curr), then RecordResult.
	ComputeFresh DirectiveKind = iota
	// ReuseCached: use Directive.Field, the last recorded field.
	ReuseCached
	// Substitute: use Directive.Field, a synthetic field standing in for lost perception.
	Substitute
)

func (k DirectiveKind) String() string {
	switch k {
	case ComputeFresh:
		return "compute_fresh"
	case ReuseCached:
		return "reuse_cached"
	case Substitute:
		return "substitute"
	}
	return fmt.Sprintf("directive(%d)", int(k))
}

// ParseDirectiveKind is the inverse of DirectiveKind.String.
func ParseDirectiveKind(v string) (DirectiveKind, error) {
	switch v {
	case "compute_fresh":
		return ComputeFresh, nil
	case "reuse_cached":
		return ReuseCached, nil
	case "substitute":
		return Substitute, nil
	}
	return 0, fmt.Errorf("unknown directive %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (k DirectiveKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DirectiveKind) UnmarshalText(b []byte) error {
	v, err := ParseDirectiveKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Directive is the controller's decision for one frame.
type Directive struct {
	Kind     DirectiveKind
	Field    flow.Field // set for ReuseCached and Substitute
	Frame    int        // index of the frame this directive applies to
	State    State      // perception state after this frame's transition
	Sampling bool       // frame index is a multiple of the sampling interval
}

// #endregion directive

// #region config
// Config holds everything needed to construct a Controller.
type Config struct {
	Model            TransitionModel
	SamplingInterval int
	InitialState     State
	Seed             *int64             // nil: seeded from the clock, see Controller.Seed
	Policy           SubstitutionPolicy // nil: ZeroPolicy
}

// DefaultConfig is the reference simulation: 90/10 and 60/40 transitions,
// flow sampled every 5th frame, starting from normal perception.
func DefaultConfig() Config {
	return Config{
		Model:            DefaultTransitionModel(),
		SamplingInterval: 5,
		InitialState:     Normal,
	}
}

// #endregion config

// #region stats
// Stats counts what the controller has decided so far.
type Stats struct {
	Frames      int
	Fresh       int
	Reused      int
	Substituted int
	Disrupted   int // frames whose post-transition state was Disrupted
}

// #endregion stats
