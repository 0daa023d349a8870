//go:build gocv

package cvbridge

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/source"
)

// Capture reads frames from a video file through cv::VideoCapture.
type Capture struct {
	vc    *gocv.VideoCapture
	size  flow.Shape
	frame gocv.Mat
	gray  gocv.Mat
	small gocv.Mat
}

// NewCapture opens path. A zero size keeps the native resolution.
func NewCapture(_ context.Context, path string, size flow.Shape) (source.Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture: could not open %s", path)
	}
	return &Capture{
		vc:    vc,
		size:  size,
		frame: gocv.NewMat(),
		gray:  gocv.NewMat(),
		small: gocv.NewMat(),
	}, nil
}

// Next returns the next frame in grayscale, or io.EOF when the video ends.
func (c *Capture) Next(ctx context.Context) (flow.Frame, error) {
	if err := ctx.Err(); err != nil {
		return flow.Frame{}, err
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return flow.Frame{}, io.EOF
	}
	gocv.CvtColor(c.frame, &c.gray, gocv.ColorBGRToGray)

	out := c.gray
	if c.size.Valid() && (c.gray.Cols() != c.size.Width || c.gray.Rows() != c.size.Height) {
		gocv.Resize(c.gray, &c.small, image.Pt(c.size.Width, c.size.Height), 0, 0, gocv.InterpolationLinear)
		out = c.small
	}
	return flow.Frame{Width: out.Cols(), Height: out.Rows(), Pix: out.ToBytes()}, nil
}

// Close releases the capture and its buffers.
func (c *Capture) Close() error {
	c.frame.Close()
	c.gray.Close()
	c.small.Close()
	return c.vc.Close()
}
