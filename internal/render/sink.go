package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// ErrStopped is returned by a Sink when the viewer asked to stop playback.
var ErrStopped = errors.New("render: stopped by user")

// #region sink
// Sink consumes rendered frames in order.
type Sink interface {
	Write(ctx context.Context, index int, img image.Image) error
	Close() error
}

// Discard drops every frame. Used for headless runs.
type Discard struct{}

func (Discard) Write(ctx context.Context, _ int, _ image.Image) error { return ctx.Err() }
func (Discard) Close() error                                         { return nil }

// #endregion sink

// #region png-sink
// PNGSinkConfig configures a PNGSink.
type PNGSinkConfig struct {
	Dir   string
	Scale float64 // output scale factor; values <= 0 mean 1
}

// DefaultPNGSinkConfig writes unscaled frames to ./frames.
func DefaultPNGSinkConfig() PNGSinkConfig {
	return PNGSinkConfig{Dir: "frames", Scale: 1}
}

// PNGSink writes each frame to Dir/frame_%06d.png.
type PNGSink struct {
	dir   string
	scale float64
	enc   png.Encoder
}

// NewPNGSink creates the output directory if needed.
func NewPNGSink(cfg PNGSinkConfig) (*PNGSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("png sink: empty output directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("png sink: %w", err)
	}
	scale := cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	return &PNGSink{
		dir:   cfg.Dir,
		scale: scale,
		enc:   png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Path returns the file a frame index is written to.
func (s *PNGSink) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%06d.png", index))
}

// Write encodes img, scaled by the configured factor.
func (s *PNGSink) Write(ctx context.Context, index int, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.scale != 1 {
		img = scaleImage(img, s.scale)
	}

	f, err := os.Create(s.Path(index))
	if err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	if err := s.enc.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("png sink: encode frame %d: %w", index, err)
	}
	return f.Close()
}

// Close is a no-op; every frame is flushed on Write.
func (s *PNGSink) Close() error { return nil }

func scaleImage(img image.Image, scale float64) image.Image {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// #endregion png-sink
