package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/render"
	"github.com/danielpatrickdp/akinetopsia/internal/source"
)

// ErrNoMatchingFrames is returned when size mismatches were skipped and no
// frame pair ever reached the controller.
var ErrNoMatchingFrames = errors.New("pipeline: no frame pair with matching size")

// resyncAfter is how many consecutive same-sized mismatches make that size the
// new stream size.
const resyncAfter = 3

// #region runner-struct
// Runner plays a frame source through the disruption controller. It owns the
// controller for the duration of Run; only frame decoding happens on another
// goroutine.
type Runner struct {
	cfg    Config
	ctrl   *disruption.Controller
	src    source.Source
	engine flow.Engine
	sink   render.Sink
	rec    Recorder
	logger *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSink renders every frame to s. Without it frames are discarded.
func WithSink(s render.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithRecorder logs every decision to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner wires a controller to its collaborators.
func NewRunner(cfg Config, ctrl *disruption.Controller, src source.Source, engine flow.Engine, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		ctrl:   ctrl,
		src:    src,
		engine: engine,
		sink:   render.Discard{},
		rec:    nopRecorder{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("pipeline")
	if r.cfg.Prefetch < 1 {
		r.cfg.Prefetch = 1
	}
	return r
}

// #endregion runner-struct

// #region run
// Run processes frames until the source is exhausted, MaxFrames is reached,
// the sink returns render.ErrStopped, or ctx is done. The first frame only
// seeds prev; every later frame is one controller step.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	frames := make(chan flow.Frame, r.cfg.Prefetch)

	g.Go(func() error {
		defer close(frames)
		return r.prefetch(gctx, frames)
	})
	g.Go(func() error {
		// Stop the reader once the loop is done, whatever the reason.
		defer cancel()
		return r.loop(gctx, frames, &sum)
	})

	err := g.Wait()
	sum.Stats = r.ctrl.Stats()
	sum.Duration = time.Since(start)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && sum.Frames == 0 && sum.Skipped > 0 {
		err = ErrNoMatchingFrames
	}
	if err != nil {
		r.logger.Error("run aborted", zap.Int("frames", sum.Frames), zap.Error(err))
		return sum, err
	}

	r.logger.Info("run finished",
		zap.Int("frames", sum.Frames),
		zap.Int("fresh", sum.Stats.Fresh),
		zap.Int("reused", sum.Stats.Reused),
		zap.Int("substituted", sum.Stats.Substituted),
		zap.Int("disrupted", sum.Stats.Disrupted),
		zap.Int("skipped", sum.Skipped),
		zap.Bool("stopped", sum.Stopped),
		zap.Duration("elapsed", sum.Duration),
	)
	return sum, nil
}

// prefetch decodes frames into out until EOF. Cancellation is not an error
// here; the loop reports it.
func (r *Runner) prefetch(ctx context.Context, out chan<- flow.Frame) error {
	for {
		f, err := r.src.Next(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Runner) loop(ctx context.Context, frames <-chan flow.Frame, sum *Summary) error {
	var limiter *rate.Limiter
	if r.cfg.FrameDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.FrameDelay), 1)
	}

	prev, ok, err := receive(ctx, frames)
	if err != nil || !ok {
		return err
	}

	// Consecutive skips of one size. A run of resyncAfter means the stream
	// changed size, or the seeding frame was the odd one out.
	var skipped int
	var skippedShape flow.Shape
	for r.cfg.MaxFrames <= 0 || sum.Frames < r.cfg.MaxFrames {
		curr, ok, err := receive(ctx, frames)
		if err != nil || !ok {
			return err
		}

		if r.cfg.SkipMismatched && curr.Shape() != prev.Shape() {
			if curr.Shape() != skippedShape {
				skipped, skippedShape = 0, curr.Shape()
			}
			skipped++
			sum.Skipped++
			if skipped >= resyncAfter {
				r.logger.Warn("stream size changed, resyncing",
					zap.Int("frame", r.ctrl.FrameCount()),
					zap.Stringer("from", prev.Shape()),
					zap.Stringer("to", curr.Shape()),
				)
				prev, skipped = curr, 0
				r.ctrl.DropCache()
				continue
			}
			r.logger.Warn("skipping frame with mismatched size",
				zap.Int("frame", r.ctrl.FrameCount()),
				zap.Stringer("expected", prev.Shape()),
				zap.Stringer("got", curr.Shape()),
			)
			continue
		}
		skipped = 0

		stop, err := r.process(ctx, prev, curr)
		if err != nil {
			return err
		}
		sum.Frames++
		if stop {
			sum.Stopped = true
			return nil
		}
		prev = curr

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// process runs one controller step and acts on its directive. stop is true
// when the sink asked playback to end.
func (r *Runner) process(ctx context.Context, prev, curr flow.Frame) (stop bool, err error) {
	d, err := r.ctrl.Step(prev, curr)
	if err != nil {
		return false, fmt.Errorf("step: %w", err)
	}

	field := d.Field
	if d.Kind == disruption.ComputeFresh {
		field, err = r.engine.Compute(ctx, prev, curr)
		if err != nil {
			return false, fmt.Errorf("frame %d: compute flow: %w", d.Frame, err)
		}
	}
	r.ctrl.RecordResult(field)

	r.logger.Debug("frame",
		zap.Int("frame", d.Frame),
		zap.Stringer("state", d.State),
		zap.Stringer("directive", d.Kind),
		zap.Bool("sampling", d.Sampling),
	)

	if err := r.rec.RecordFrame(d, field); err != nil {
		return false, fmt.Errorf("frame %d: record: %w", d.Frame, err)
	}
	if err := r.sink.Write(ctx, d.Frame, render.ToRGBA(field)); err != nil {
		if errors.Is(err, render.ErrStopped) {
			return true, nil
		}
		return false, fmt.Errorf("frame %d: render: %w", d.Frame, err)
	}
	return false, nil
}

func receive(ctx context.Context, frames <-chan flow.Frame) (flow.Frame, bool, error) {
	select {
	case <-ctx.Done():
		return flow.Frame{}, false, ctx.Err()
	case f, ok := <-frames:
		return f, ok, nil
	}
}

// #endregion run
