package pipeline

import (
	"time"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
)

// #region config
// Config tunes the frame loop.
type Config struct {
	FrameDelay     time.Duration // minimum spacing between rendered frames; 0 disables pacing
	Prefetch       int           // frames decoded ahead of the controller
	MaxFrames      int           // stop after this many processed frames; 0 means no limit
	SkipMismatched bool          // drop frames whose size differs from the stream instead of failing; a sustained new size is adopted
}

// DefaultConfig paces playback at 30 ms per frame.
func DefaultConfig() Config {
	return Config{
		FrameDelay: 30 * time.Millisecond,
		Prefetch:   4,
	}
}

// #endregion config

// #region summary
// Summary reports what a run did.
type Summary struct {
	Frames   int              // frame pairs processed
	Skipped  int              // frames dropped for a size mismatch
	Stopped  bool             // the sink asked to stop
	Stats    disruption.Stats // controller decision counters
	Duration time.Duration
}

// #endregion summary
