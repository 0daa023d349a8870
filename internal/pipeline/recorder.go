package pipeline

import (
	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// #region recorder
// Recorder persists the decision taken for each frame and the field used.
type Recorder interface {
	RecordFrame(d disruption.Directive, field flow.Field) error
}

type nopRecorder struct{}

func (nopRecorder) RecordFrame(disruption.Directive, flow.Field) error { return nil }

// StoreRecorder writes decisions to the run log.
type StoreRecorder struct {
	store *store.Store
	runID string
}

// NewStoreRecorder records into the frame log of runID.
func NewStoreRecorder(s *store.Store, runID string) *StoreRecorder {
	return &StoreRecorder{store: s, runID: runID}
}

// RecordFrame implements Recorder.
func (r *StoreRecorder) RecordFrame(d disruption.Directive, field flow.Field) error {
	return r.store.LogFrame(store.FrameRecord{
		RunID:         r.runID,
		Index:         d.Frame,
		State:         d.State,
		Directive:     d.Kind,
		Sampling:      d.Sampling,
		MeanMagnitude: field.MeanMagnitude(),
	})
}

// #endregion recorder
