package disruption

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ModelTolerance is the allowed deviation of a row sum from 1.
const ModelTolerance = 1e-6

// #region transition-model
// TransitionModel is a 2x2 row-stochastic matrix indexed [from][to].
// Row Normal is [p_stay_normal, p_to_disrupted]; row Disrupted is
// [p_to_normal, p_stay_disrupted].
type TransitionModel [NumStates][NumStates]float64

// DefaultTransitionModel returns [[0.9, 0.1], [0.6, 0.4]].
func DefaultTransitionModel() TransitionModel {
	return TransitionModel{
		{0.9, 0.1},
		{0.6, 0.4},
	}
}

// NewTransitionModel builds a model from a dynamically sized matrix, as read
// from configuration, and validates it.
func NewTransitionModel(rows [][]float64) (TransitionModel, error) {
	var m TransitionModel
	if len(rows) != NumStates {
		return m, fmt.Errorf("%w: need %d rows, got %d", ErrInvalidModel, NumStates, len(rows))
	}
	for i, row := range rows {
		if len(row) != NumStates {
			return m, fmt.Errorf("%w: row %d has %d entries, need %d", ErrInvalidModel, i, len(row), NumStates)
		}
		copy(m[i][:], row)
	}
	if err := m.Validate(); err != nil {
		return TransitionModel{}, err
	}
	return m, nil
}

// Validate checks every entry is in [0,1] and every row sums to 1 within ModelTolerance.
func (m TransitionModel) Validate() error {
	for i := range m {
		for j, p := range m[i] {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return fmt.Errorf("%w: P[%s][%s]=%g outside [0,1]", ErrInvalidModel, State(i), State(j), p)
			}
		}
		if sum := floats.Sum(m[i][:]); math.Abs(sum-1) > ModelTolerance {
			return fmt.Errorf("%w: row %s sums to %g", ErrInvalidModel, State(i), sum)
		}
	}
	return nil
}

// Row returns a copy of the outgoing distribution of s.
func (m TransitionModel) Row(s State) []float64 {
	row := make([]float64, NumStates)
	copy(row, m[s][:])
	return row
}

// Rows returns the matrix as nested slices, the shape used by configuration.
func (m TransitionModel) Rows() [][]float64 {
	out := make([][]float64, NumStates)
	for i := range m {
		out[i] = m.Row(State(i))
	}
	return out
}

// #endregion transition-model

// #region chain-properties
// Stationary returns the long-run distribution [pi_normal, pi_disrupted].
// ok is false when the chain never leaves its start state (both switching
// probabilities zero) and the distribution is not unique.
func (m TransitionModel) Stationary() (pi [NumStates]float64, ok bool) {
	toDisrupted := m[Normal][Disrupted]
	toNormal := m[Disrupted][Normal]
	if toDisrupted+toNormal == 0 {
		return pi, false
	}
	pi[Disrupted] = toDisrupted / (toDisrupted + toNormal)
	pi[Normal] = 1 - pi[Disrupted]
	return pi, true
}

// MeanDwell is the expected number of consecutive frames spent in s once
// entered, 1/(1-p_stay). It is +Inf for an absorbing state.
func (m TransitionModel) MeanDwell(s State) float64 {
	leave := 1 - m[s][s]
	if leave <= 0 {
		return math.Inf(1)
	}
	return 1 / leave
}

// #endregion chain-properties
