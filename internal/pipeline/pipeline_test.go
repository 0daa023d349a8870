package pipeline

//go:generate mockgen -destination mock_flow_test.go -package pipeline -write_package_comment=false github.com/danielpatrickdp/akinetopsia/internal/flow Engine
//go:generate mockgen -destination mock_render_test.go -package pipeline -write_package_comment=false github.com/danielpatrickdp/akinetopsia/internal/render Sink

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/render"
	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// #region fixtures
// sliceSource plays a fixed list of frames.
type sliceSource struct {
	frames []flow.Frame
	next   int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (flow.Frame, error) {
	if err := ctx.Err(); err != nil {
		return flow.Frame{}, err
	}
	if s.next >= len(s.frames) {
		return flow.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// blockingSource yields one frame and then blocks until cancelled.
type blockingSource struct {
	served bool
}

func (s *blockingSource) Next(ctx context.Context) (flow.Frame, error) {
	if !s.served {
		s.served = true
		return flow.NewFrame(2, 2), nil
	}
	<-ctx.Done()
	return flow.Frame{}, ctx.Err()
}

func (s *blockingSource) Close() error { return nil }

func uniformFrames(n, w, h int) *sliceSource {
	src := &sliceSource{}
	for i := 0; i < n; i++ {
		f := flow.NewFrame(w, h)
		for j := range f.Pix {
			f.Pix[j] = uint8(i)
		}
		src.frames = append(src.frames, f)
	}
	return src
}

func newController(t *testing.T, model disruption.TransitionModel, draw disruption.State) *disruption.Controller {
	t.Helper()
	cfg := disruption.DefaultConfig()
	cfg.Model = model
	ctrl, err := disruption.New(cfg, disruption.WithSampler(disruption.SamplerFunc(func([]float64) int {
		return int(draw)
	})))
	require.NoError(t, err)
	return ctrl
}

func motionField(w, h int) flow.Field {
	f := flow.NewField(flow.Shape{Width: w, Height: h})
	f.Set(0, 0, 3, 4)
	return f
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameDelay = 0
	return cfg
}

// #endregion fixtures

// #region directive-tests
func TestRunComputesOncePerFreshDirective(t *testing.T) {
	mc := gomock.NewController(t)
	engine := NewMockEngine(mc)
	sink := NewMockSink(mc)

	engine.EXPECT().Compute(gomock.Any(), gomock.Any(), gomock.Any()).Return(motionField(4, 4), nil).Times(2)
	sink.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(10)

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	r := NewRunner(testConfig(), ctrl, uniformFrames(11, 4, 4), engine,
		WithSink(sink), WithLogger(zaptest.NewLogger(t)))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Frames)
	assert.Equal(t, 2, sum.Stats.Fresh)
	assert.Equal(t, 8, sum.Stats.Reused)
	assert.Equal(t, 0, sum.Stats.Substituted)
	assert.False(t, sum.Stopped)

	cached, ok := ctrl.Cached()
	require.True(t, ok)
	assert.Equal(t, motionField(4, 4), cached)
}

func TestRunDisruptedNeverCallsEngine(t *testing.T) {
	mc := gomock.NewController(t)
	engine := NewMockEngine(mc)

	ctrl := newController(t, disruption.TransitionModel{{0, 1}, {0, 1}}, disruption.Disrupted)
	r := NewRunner(testConfig(), ctrl, uniformFrames(11, 4, 4), engine)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Frames)
	assert.Equal(t, 0, sum.Stats.Fresh)
	assert.Equal(t, 2, sum.Stats.Substituted)
	assert.Equal(t, 8, sum.Stats.Reused)
	assert.Equal(t, 10, sum.Stats.Disrupted)
}

func TestRunEngineErrorAborts(t *testing.T) {
	mc := gomock.NewController(t)
	engine := NewMockEngine(mc)
	boom := errors.New("engine offline")
	engine.EXPECT().Compute(gomock.Any(), gomock.Any(), gomock.Any()).Return(flow.Field{}, boom)

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	r := NewRunner(testConfig(), ctrl, uniformFrames(5, 2, 2), engine)

	sum, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, sum.Frames)
}

// #endregion directive-tests

// #region stop-tests
func TestRunStopsOnSinkStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	mc := gomock.NewController(t)
	engine := NewMockEngine(mc)
	sink := NewMockSink(mc)
	engine.EXPECT().Compute(gomock.Any(), gomock.Any(), gomock.Any()).Return(motionField(2, 2), nil).AnyTimes()
	gomock.InOrder(
		sink.EXPECT().Write(gomock.Any(), 0, gomock.Any()).Return(nil),
		sink.EXPECT().Write(gomock.Any(), 1, gomock.Any()).Return(nil),
		sink.EXPECT().Write(gomock.Any(), 2, gomock.Any()).Return(render.ErrStopped),
	)

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	r := NewRunner(testConfig(), ctrl, uniformFrames(50, 2, 2), engine, WithSink(sink))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Stopped)
	assert.Equal(t, 3, sum.Frames)
}

func TestRunMaxFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})
	cfg := testConfig()
	cfg.MaxFrames = 3
	cfg.Prefetch = 1

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, uniformFrames(100, 2, 2), engine).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 3, ctrl.FrameCount())
}

func TestRunCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	r := NewRunner(testConfig(), ctrl, &blockingSource{}, flow.EngineFunc(nil))

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunEmptySource(t *testing.T) {
	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	for _, n := range []int{0, 1} {
		sum, err := NewRunner(testConfig(), ctrl, uniformFrames(n, 2, 2), flow.EngineFunc(nil)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Frames)
	}
}

// #endregion stop-tests

// #region shape-tests
func TestRunShapeMismatchAborts(t *testing.T) {
	src := uniformFrames(2, 4, 4)
	src.frames = append(src.frames, flow.NewFrame(2, 2))
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(testConfig(), ctrl, src, engine).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, disruption.ErrShapeMismatch)
	assert.Equal(t, 1, sum.Frames)
}

func TestRunSkipsMismatchedFrames(t *testing.T) {
	src := uniformFrames(2, 4, 4)
	src.frames = append(src.frames, flow.NewFrame(2, 2), flow.NewFrame(4, 4))
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})
	cfg := testConfig()
	cfg.SkipMismatched = true

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, src, engine).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, 1, sum.Skipped)
}

func TestRunResyncsAfterOddFirstFrame(t *testing.T) {
	src := &sliceSource{frames: []flow.Frame{flow.NewFrame(2, 2)}}
	src.frames = append(src.frames, uniformFrames(6, 4, 4).frames...)
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})
	cfg := testConfig()
	cfg.SkipMismatched = true

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, src, engine).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resyncAfter, sum.Skipped)
	assert.Equal(t, 6-resyncAfter, sum.Frames)
	assert.Equal(t, 1, sum.Stats.Fresh)
}

func TestRunResyncDropsStaleCache(t *testing.T) {
	src := uniformFrames(3, 4, 4)
	src.frames = append(src.frames, uniformFrames(5, 8, 8).frames...)
	var computed []flow.Shape
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		computed = append(computed, curr.Shape())
		return flow.NewField(curr.Shape()), nil
	})
	cfg := testConfig()
	cfg.SkipMismatched = true

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, src, engine).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Frames)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, []flow.Shape{{Width: 4, Height: 4}, {Width: 8, Height: 8}}, computed)
}

func TestRunNoMatchingFrames(t *testing.T) {
	src := uniformFrames(1, 4, 4)
	src.frames = append(src.frames, flow.NewFrame(2, 2), flow.NewFrame(2, 2))
	cfg := testConfig()
	cfg.SkipMismatched = true

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, src, flow.EngineFunc(nil)).Run(context.Background())
	require.ErrorIs(t, err, ErrNoMatchingFrames)
	assert.Equal(t, 0, sum.Frames)
	assert.Equal(t, 2, sum.Skipped)
}

// #endregion shape-tests

// #region recorder-tests
func TestRunRecordsToStore(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	run, err := st.CreateRun(store.RunRecord{
		Source:           "memory",
		SamplingInterval: 5,
		Model:            disruption.DefaultTransitionModel(),
		Policy:           disruption.PolicyZero,
		Width:            4,
		Height:           4,
	})
	require.NoError(t, err)

	engine := flow.EngineFunc(func(context.Context, flow.Frame, flow.Frame) (flow.Field, error) {
		return motionField(4, 4), nil
	})
	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	r := NewRunner(testConfig(), ctrl, uniformFrames(7, 4, 4), engine,
		WithRecorder(NewStoreRecorder(st, run.RunID)))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(run.RunID, sum.Frames))

	frames, err := st.Frames(run.RunID)
	require.NoError(t, err)
	require.Len(t, frames, 6)
	assert.Equal(t, disruption.ComputeFresh, frames[0].Directive)
	assert.True(t, frames[0].Sampling)
	assert.InDelta(t, 5.0/16.0, frames[0].MeanMagnitude, 1e-9)
	assert.Equal(t, disruption.ReuseCached, frames[1].Directive)
	assert.Equal(t, disruption.ComputeFresh, frames[5].Directive)
}

// #endregion recorder-tests

// #region pacing-tests
func TestRunPacesFrames(t *testing.T) {
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})
	cfg := DefaultConfig()
	cfg.FrameDelay = 20 * time.Millisecond

	ctrl := newController(t, disruption.DefaultTransitionModel(), disruption.Normal)
	sum, err := NewRunner(cfg, ctrl, uniformFrames(4, 2, 2), engine).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Frames)
	assert.GreaterOrEqual(t, sum.Duration, 35*time.Millisecond)
}

// #endregion pacing-tests
