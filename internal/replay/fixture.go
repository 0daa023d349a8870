package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	RunID           string                  `json:"run_id,omitempty"`
	Config          FixtureConfig           `json:"config"`
	Shape           flow.Shape              `json:"shape"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors disruption.Config with JSON tags.
type FixtureConfig struct {
	TransitionMatrix [][]float64 `json:"transition_matrix"`
	SamplingInterval int         `json:"sampling_interval"`
	InitialState     string      `json:"initial_state"`
	Seed             int64       `json:"seed"`
	Policy           string      `json:"policy,omitempty"`
	NoiseSigma       float64     `json:"noise_sigma,omitempty"` // noise policy only; 0 means 1
}

// FixtureExpectedResult captures the expected decision per frame.
type FixtureExpectedResult struct {
	Frame     int    `json:"frame"`
	State     string `json:"state"`
	Directive string `json:"directive"`
	Sampling  bool   `json:"sampling"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// FixtureFromRun exports a logged run as a fixture.
func FixtureFromRun(run store.RunRecord, frames []store.FrameRecord) *Fixture {
	f := &Fixture{
		Description: fmt.Sprintf("run %s over %s", run.RunID, run.Source),
		RunID:       run.RunID,
		Config: FixtureConfig{
			TransitionMatrix: run.Model.Rows(),
			SamplingInterval: run.SamplingInterval,
			InitialState:     run.InitialState.String(),
			Seed:             int64(run.Seed),
			Policy:           run.Policy,
		},
		Shape:           flow.Shape{Width: run.Width, Height: run.Height},
		ExpectedResults: make([]FixtureExpectedResult, len(frames)),
	}
	if !f.Shape.Valid() {
		// Runs at native size record no shape; decisions do not depend on it.
		f.Shape = flow.Shape{Width: 1, Height: 1}
	}
	for i, fr := range frames {
		f.ExpectedResults[i] = FixtureExpectedResult{
			Frame:     fr.Index,
			State:     fr.State.String(),
			Directive: fr.Directive.String(),
			Sampling:  fr.Sampling,
		}
	}
	return f
}

// ToReplayConfig converts a fixture to a domain ReplayConfig.
func (f *Fixture) ToReplayConfig() (ReplayConfig, error) {
	model, err := disruption.NewTransitionModel(f.Config.TransitionMatrix)
	if err != nil {
		return ReplayConfig{}, err
	}
	initial, err := disruption.ParseState(f.Config.InitialState)
	if err != nil {
		return ReplayConfig{}, err
	}
	seed := f.Config.Seed
	sigma := f.Config.NoiseSigma
	if sigma == 0 {
		sigma = 1
	}
	policy, err := disruption.NewPolicy(f.Config.Policy, sigma, disruption.PolicySeed(seed))
	if err != nil {
		return ReplayConfig{}, err
	}
	return ReplayConfig{
		Controller: disruption.Config{
			Model:            model,
			SamplingInterval: f.Config.SamplingInterval,
			InitialState:     initial,
			Seed:             &seed,
			Policy:           policy,
		},
		Shape: f.Shape,
	}, nil
}

// ToDecisions converts the expected results to domain decisions.
func (f *Fixture) ToDecisions() ([]Decision, error) {
	out := make([]Decision, len(f.ExpectedResults))
	for i, r := range f.ExpectedResults {
		st, err := disruption.ParseState(r.State)
		if err != nil {
			return nil, fmt.Errorf("expected result %d: %w", i, err)
		}
		kind, err := disruption.ParseDirectiveKind(r.Directive)
		if err != nil {
			return nil, fmt.Errorf("expected result %d: %w", i, err)
		}
		out[i] = Decision{Frame: r.Frame, State: st, Directive: kind, Sampling: r.Sampling}
	}
	return out, nil
}

// Run converts f and replays it.
func (f *Fixture) Run() ([]ReplayResult, error) {
	cfg, err := f.ToReplayConfig()
	if err != nil {
		return nil, err
	}
	expected, err := f.ToDecisions()
	if err != nil {
		return nil, err
	}
	return Replay(cfg, expected)
}

// #endregion fixture-loader
