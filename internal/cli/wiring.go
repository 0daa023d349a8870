package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/akinetopsia/internal/config"
	"github.com/danielpatrickdp/akinetopsia/internal/cvbridge"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/flowsvc"
	"github.com/danielpatrickdp/akinetopsia/internal/render"
	"github.com/danielpatrickdp/akinetopsia/internal/source"
)

// #region engine
// openLocalEngine builds the in-process OpenCV engine.
func openLocalEngine(cfg config.EngineConfig) (flow.Engine, error) {
	fb := cfg.Farneback
	return cvbridge.NewFarneback(cvbridge.FarnebackParams{
		PyrScale:   fb.PyrScale,
		Levels:     fb.Levels,
		WinSize:    fb.WinSize,
		Iterations: fb.Iterations,
		PolyN:      fb.PolyN,
		PolySigma:  fb.PolySigma,
		Flags:      fb.Flags,
	})
}

// openEngine returns the configured engine and a func releasing it.
func openEngine(cfg config.EngineConfig) (flow.Engine, func() error, error) {
	switch cfg.Kind {
	case config.EngineRemote:
		client, err := flowsvc.NewClient(cfg.Address)
		if err != nil {
			return nil, nil, err
		}
		return flowsvc.WithRetry(withTimeout(client, cfg.Timeout), 100*time.Millisecond), client.Close, nil
	case config.EngineFarneback:
		e, err := openLocalEngine(cfg)
		if err != nil {
			return nil, nil, err
		}
		return e, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
}

func withTimeout(e flow.Engine, d time.Duration) flow.Engine {
	if d <= 0 {
		return e
	}
	return flow.EngineFunc(func(ctx context.Context, prev, curr flow.Frame) (flow.Field, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return e.Compute(ctx, prev, curr)
	})
}

// #endregion engine

// #region source
func openSource(ctx context.Context, cfg config.SourceConfig) (source.Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("source.path is required")
	}
	if cfg.Kind == config.SourceCapture {
		return cvbridge.NewCapture(ctx, cfg.Path, flow.Shape{Width: cfg.Width, Height: cfg.Height})
	}
	return source.Open(ctx, cfg.ToSourceConfig())
}

// #endregion source

// #region sink
func openSink(cfg config.RenderConfig) (render.Sink, error) {
	switch cfg.Output {
	case config.OutputWindow:
		return cvbridge.NewWindow(cfg.WindowName)
	case config.OutputPNG:
		return render.NewPNGSink(cfg.ToPNGSinkConfig())
	case config.OutputNone:
		return render.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown render output %q", cfg.Output)
}

// #endregion sink
