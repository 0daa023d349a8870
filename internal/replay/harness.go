package replay

import (
	"fmt"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region types
// Decision is one recorded controller decision.
type Decision struct {
	Frame     int
	State     disruption.State
	Directive disruption.DirectiveKind
	Sampling  bool
}

// ReplayConfig is what a run needs to be re-driven: the controller settings,
// including the recorded seed, and the frame size.
type ReplayConfig struct {
	Controller disruption.Config
	Shape      flow.Shape
}

// DefaultReplayConfig replays the default controller over 1x1 frames.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Controller: disruption.DefaultConfig(),
		Shape:      flow.Shape{Width: 1, Height: 1},
	}
}

// ReplayResult compares one recorded decision with the replayed one.
type ReplayResult struct {
	Frame    int
	Expected Decision
	Actual   Decision
	Match    bool
	Reason   string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalFrames int
	Matches     int
	Mismatches  int
	Fresh       int
	Reused      int
	Substituted int
	Disrupted   int
	FirstDiff   int // frame of the first mismatch, -1 if none
}

// #endregion types

// #region replay
// Replay drives a fresh controller over len(expected) synthetic frame pairs
// and compares each decision. Every directive is followed by RecordResult,
// as the pipeline does, so cache-dependent decisions line up with the
// recorded run. The controller config must carry a seed.
func Replay(config ReplayConfig, expected []Decision) ([]ReplayResult, error) {
	if config.Controller.Seed == nil {
		return nil, fmt.Errorf("replay: controller config has no seed")
	}
	if !config.Shape.Valid() {
		return nil, fmt.Errorf("replay: invalid frame shape %s", config.Shape)
	}
	ctrl, err := disruption.New(config.Controller)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	frame := flow.NewFrame(config.Shape.Width, config.Shape.Height)
	computed := flow.NewField(config.Shape)
	results := make([]ReplayResult, 0, len(expected))

	for _, exp := range expected {
		d, err := ctrl.Step(frame, frame)
		if err != nil {
			return results, fmt.Errorf("replay frame %d: %w", exp.Frame, err)
		}
		if d.Kind == disruption.ComputeFresh {
			ctrl.RecordResult(computed)
		} else {
			ctrl.RecordResult(d.Field)
		}

		actual := Decision{Frame: d.Frame, State: d.State, Directive: d.Kind, Sampling: d.Sampling}
		results = append(results, compare(exp, actual))
	}
	return results, nil
}

func compare(exp, actual Decision) ReplayResult {
	r := ReplayResult{Frame: exp.Frame, Expected: exp, Actual: actual, Match: true}
	switch {
	case exp.Frame != actual.Frame:
		r.Reason = fmt.Sprintf("frame index %d, replayed %d", exp.Frame, actual.Frame)
	case exp.State != actual.State:
		r.Reason = fmt.Sprintf("state %s, replayed %s", exp.State, actual.State)
	case exp.Directive != actual.Directive:
		r.Reason = fmt.Sprintf("directive %s, replayed %s", exp.Directive, actual.Directive)
	case exp.Sampling != actual.Sampling:
		r.Reason = fmt.Sprintf("sampling %t, replayed %t", exp.Sampling, actual.Sampling)
	}
	r.Match = r.Reason == ""
	return r
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalFrames: len(results), FirstDiff: -1}
	for _, r := range results {
		if r.Match {
			s.Matches++
		} else {
			s.Mismatches++
			if s.FirstDiff < 0 {
				s.FirstDiff = r.Frame
			}
		}
		switch r.Actual.Directive {
		case disruption.ComputeFresh:
			s.Fresh++
		case disruption.ReuseCached:
			s.Reused++
		case disruption.Substitute:
			s.Substituted++
		}
		if r.Actual.State == disruption.Disrupted {
			s.Disrupted++
		}
	}
	return s
}

// #endregion replay
