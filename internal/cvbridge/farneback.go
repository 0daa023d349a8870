//go:build gocv

package cvbridge

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// Farneback computes dense optical flow with OpenCV's Farneback method.
type Farneback struct {
	params FarnebackParams
}

// NewFarneback validates p and returns the engine.
func NewFarneback(p FarnebackParams) (flow.Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Farneback{params: p}, nil
}

// Compute runs calcOpticalFlowFarneback on two 8-bit grayscale frames.
func (e *Farneback) Compute(ctx context.Context, prev, curr flow.Frame) (flow.Field, error) {
	if err := flow.CheckShapes(prev.Shape(), curr.Shape()); err != nil {
		return flow.Field{}, err
	}
	if err := ctx.Err(); err != nil {
		return flow.Field{}, err
	}

	a, err := gocv.NewMatFromBytes(prev.Height, prev.Width, gocv.MatTypeCV8UC1, prev.Pix)
	if err != nil {
		return flow.Field{}, fmt.Errorf("farneback: prev frame: %w", err)
	}
	defer a.Close()
	b, err := gocv.NewMatFromBytes(curr.Height, curr.Width, gocv.MatTypeCV8UC1, curr.Pix)
	if err != nil {
		return flow.Field{}, fmt.Errorf("farneback: curr frame: %w", err)
	}
	defer b.Close()

	out := gocv.NewMat()
	defer out.Close()
	p := e.params
	gocv.CalcOpticalFlowFarneback(a, b, &out, p.PyrScale, p.Levels, p.WinSize, p.Iterations, p.PolyN, p.PolySigma, p.Flags)

	// CV_32FC2 is already interleaved (dx, dy), row-major.
	data, err := out.DataPtrFloat32()
	if err != nil {
		return flow.Field{}, fmt.Errorf("farneback: read result: %w", err)
	}
	field := flow.NewField(curr.Shape())
	if len(data) != len(field.Vec) {
		return flow.Field{}, fmt.Errorf("farneback: result has %d values, want %d", len(data), len(field.Vec))
	}
	copy(field.Vec, data)
	return field, nil
}
