package source

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region source
// Source yields grayscale frames in playback order. Next returns io.EOF once
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (flow.Frame, error)
	Close() error
}

// Kinds accepted by Open.
const (
	KindImages = "images"
	KindFFmpeg = "ffmpeg"
)

// Config selects and configures a frame source.
type Config struct {
	Kind   string // "images" or "ffmpeg"
	Path   string // glob or directory for images, media file for ffmpeg
	Width  int    // working width; 0 keeps the native size
	Height int    // working height; 0 keeps the native size
}

// DefaultConfig reads an image sequence at its native size.
func DefaultConfig() Config {
	return Config{Kind: KindImages}
}

// Size is the requested working size, zero when unset.
func (c Config) Size() flow.Shape {
	return flow.Shape{Width: c.Width, Height: c.Height}
}

// Open builds the source named by cfg.Kind.
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Kind {
	case KindImages, "":
		return NewImageSequence(cfg.Path, cfg.Size())
	case KindFFmpeg:
		fc := DefaultFFmpegConfig()
		fc.Path = cfg.Path
		fc.Size = cfg.Size()
		return NewFFmpeg(ctx, fc)
	}
	return nil, fmt.Errorf("source: unknown kind %q", cfg.Kind)
}

// #endregion source
