package store

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// #region run-record
// RunRecord describes one pass of the controller over a source: everything
// needed to replay it.
type RunRecord struct {
	RunID            string
	Source           string
	Seed             uint64
	SamplingInterval int
	InitialState     disruption.State
	Model            disruption.TransitionModel
	Policy           string
	Width            int
	Height           int
	StartedAt        time.Time
	FinishedAt       time.Time // zero while the run is in progress
	Frames           int
}

// Finished reports whether FinishRun was called.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// #endregion run-record

// #region frame-record
// FrameRecord is the controller's decision for one frame of a run.
type FrameRecord struct {
	RunID         string
	Index         int
	State         disruption.State
	Directive     disruption.DirectiveKind
	Sampling      bool
	MeanMagnitude float64
	CreatedAt     time.Time
}

// #endregion frame-record
