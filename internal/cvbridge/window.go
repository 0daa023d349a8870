//go:build gocv

package cvbridge

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/danielpatrickdp/akinetopsia/internal/render"
)

// Window shows rendered fields in a HighGUI window. Pressing q or Esc stops
// the run.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window titled name.
func NewWindow(name string) (render.Sink, error) {
	return &Window{win: gocv.NewWindow(name)}, nil
}

func (w *Window) Write(ctx context.Context, _ int, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("window: convert frame: %w", err)
	}
	defer mat.Close()
	w.win.IMShow(mat)
	switch w.win.WaitKey(1) {
	case 'q', 27:
		return render.ErrStopped
	}
	return nil
}

func (w *Window) Close() error {
	return w.win.Close()
}
