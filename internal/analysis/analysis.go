package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region simulate
// Simulate drives a real controller over steps 1x1 frame pairs and returns
// the perception state after each transition. A nil sampler uses the
// controller's clock-seeded default.
func Simulate(model disruption.TransitionModel, initial disruption.State, steps int, sampler disruption.Sampler) ([]disruption.State, error) {
	if steps < 0 {
		return nil, fmt.Errorf("simulate: negative step count %d", steps)
	}
	cfg := disruption.DefaultConfig()
	cfg.Model = model
	cfg.InitialState = initial

	var opts []disruption.Option
	if sampler != nil {
		opts = append(opts, disruption.WithSampler(sampler))
	}
	c, err := disruption.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	frame := flow.NewFrame(1, 1)
	zero := flow.NewField(frame.Shape())
	states := make([]disruption.State, 0, steps)
	for i := 0; i < steps; i++ {
		d, err := c.Step(frame, frame)
		if err != nil {
			return nil, fmt.Errorf("simulate step %d: %w", i, err)
		}
		if d.Kind == disruption.ComputeFresh {
			c.RecordResult(zero)
		} else {
			c.RecordResult(d.Field)
		}
		states = append(states, d.State)
	}
	return states, nil
}

// #endregion simulate

// #region occupancy
// Occupancy returns the fraction of states spent in each perception state.
func Occupancy(states []disruption.State) [disruption.NumStates]float64 {
	var occ [disruption.NumStates]float64
	if len(states) == 0 {
		return occ
	}
	indicator := make([]float64, len(states))
	for i, s := range states {
		if s == disruption.Disrupted {
			indicator[i] = 1
		}
	}
	occ[disruption.Disrupted] = stat.Mean(indicator, nil)
	occ[disruption.Normal] = 1 - occ[disruption.Disrupted]
	return occ
}

// Episodes returns the lengths of maximal runs of s, in order. A run cut off
// by the end of the sequence is included.
func Episodes(states []disruption.State, s disruption.State) []int {
	var out []int
	run := 0
	for _, st := range states {
		if st == s {
			run++
			continue
		}
		if run > 0 {
			out = append(out, run)
			run = 0
		}
	}
	if run > 0 {
		out = append(out, run)
	}
	return out
}

// #endregion occupancy

// #region evaluate
// Evaluate compares a simulated state sequence with the analytic properties
// of model: the stationary disrupted fraction and the mean episode length of
// each state.
func Evaluate(model disruption.TransitionModel, states []disruption.State, cfg Config) Report {
	if cfg.BurnIn > 0 && cfg.BurnIn < len(states) {
		states = states[cfg.BurnIn:]
	}
	report := Report{Steps: len(states), Passed: true}
	if len(states) == 0 {
		report.Passed = false
		report.Reason = "no states to evaluate"
		return report
	}

	var failReasons []string

	// 1. Disrupted fraction against the stationary distribution. A chain that
	// never switches stays where it started.
	occ := Occupancy(states)
	expected := 0.0
	if pi, ok := model.Stationary(); ok {
		expected = pi[disruption.Disrupted]
	} else if states[0] == disruption.Disrupted {
		expected = 1
	}
	m := Metric{
		Name:     "disrupted_fraction",
		Value:    occ[disruption.Disrupted],
		Expected: expected,
		Pass:     math.Abs(occ[disruption.Disrupted]-expected) <= cfg.Tolerance,
	}
	report.Metrics = append(report.Metrics, m)
	if !m.Pass {
		failReasons = append(failReasons, fmt.Sprintf("disrupted fraction %.4f, expected %.4f", m.Value, m.Expected))
	}

	// 2. Mean episode length per state against 1/(1-p_stay). Geometric
	// dwell times are noisier than occupancy, so the tolerance is relative.
	for _, s := range []disruption.State{disruption.Normal, disruption.Disrupted} {
		eps := Episodes(states, s)
		dwell := model.MeanDwell(s)
		if len(eps) == 0 || math.IsInf(dwell, 1) {
			continue
		}
		lengths := make([]float64, len(eps))
		for i, n := range eps {
			lengths[i] = float64(n)
		}
		mean := stat.Mean(lengths, nil)
		m := Metric{
			Name:     fmt.Sprintf("mean_%s_episode", s),
			Value:    mean,
			Expected: dwell,
			Pass:     math.Abs(mean-dwell) <= dwellTolerance(cfg.Tolerance)*dwell,
		}
		report.Metrics = append(report.Metrics, m)
		if !m.Pass {
			failReasons = append(failReasons, fmt.Sprintf("mean %s episode %.3f, expected %.3f", s, m.Value, m.Expected))
		}
	}

	report.Reason = "all checks passed"
	if len(failReasons) > 0 {
		report.Passed = false
		report.Reason = fmt.Sprintf("analysis failed: %d checks: %s", len(failReasons), failReasons[0])
	}
	return report
}

// dwellTolerance scales the occupancy tolerance into a relative bound.
func dwellTolerance(tol float64) float64 {
	return 5 * tol
}

// #endregion evaluate
