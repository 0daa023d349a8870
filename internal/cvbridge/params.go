package cvbridge

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by every constructor in builds without gocv.
var ErrUnavailable = errors.New("cvbridge: built without gocv (rebuild with -tags gocv)")

// FarnebackParams mirrors the arguments of cv::calcOpticalFlowFarneback.
type FarnebackParams struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
	Flags      int
}

// DefaultFarnebackParams returns the usual real-time settings.
func DefaultFarnebackParams() FarnebackParams {
	return FarnebackParams{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
	}
}

// Validate rejects parameters OpenCV would assert on.
func (p FarnebackParams) Validate() error {
	if p.PyrScale <= 0 || p.PyrScale >= 1 {
		return fmt.Errorf("farneback: pyr_scale must be in (0, 1), got %g", p.PyrScale)
	}
	if p.Levels < 1 || p.WinSize < 1 || p.Iterations < 1 {
		return fmt.Errorf("farneback: levels, win_size and iterations must be positive")
	}
	if p.PolyN != 5 && p.PolyN != 7 {
		return fmt.Errorf("farneback: poly_n must be 5 or 7, got %d", p.PolyN)
	}
	if p.PolySigma <= 0 {
		return fmt.Errorf("farneback: poly_sigma must be positive, got %g", p.PolySigma)
	}
	return nil
}
