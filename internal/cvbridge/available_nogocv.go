//go:build !gocv

package cvbridge

import (
	"context"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/render"
	"github.com/danielpatrickdp/akinetopsia/internal/source"
)

// Available reports whether the package was built against OpenCV.
const Available = false

func NewFarneback(FarnebackParams) (flow.Engine, error) { return nil, ErrUnavailable }

func NewCapture(context.Context, string, flow.Shape) (source.Source, error) {
	return nil, ErrUnavailable
}

func NewWindow(string) (render.Sink, error) { return nil, ErrUnavailable }
