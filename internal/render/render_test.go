package render

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

func TestToRGBAZeroFieldIsBlack(t *testing.T) {
	img := ToRGBA(flow.NewField(flow.Shape{Width: 4, Height: 3}))
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, color.RGBA{A: 0xff}, img.RGBAAt(x, y))
		}
	}
}

func TestToRGBAConstantMagnitudeIsBlack(t *testing.T) {
	f := flow.NewField(flow.Shape{Width: 2, Height: 1})
	f.Set(0, 0, 1, 0)
	f.Set(1, 0, 0, 1)
	img := ToRGBA(f)
	assert.Equal(t, color.RGBA{A: 0xff}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 0xff}, img.RGBAAt(1, 0))
}

func TestToRGBAHueFollowsDirection(t *testing.T) {
	// pixel 0 is still so the others normalize to full value.
	f := flow.NewField(flow.Shape{Width: 4, Height: 1})
	f.Set(1, 0, 2, 0)  // 0 deg: red
	f.Set(2, 0, -2, 0) // 180 deg: cyan
	f.Set(3, 0, 0, 2)  // 90 deg: chartreuse

	img := ToRGBA(f)
	assert.Equal(t, color.RGBA{A: 0xff}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 0xff}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{G: 255, B: 255, A: 0xff}, img.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{R: 128, G: 255, A: 0xff}, img.RGBAAt(3, 0))
}

func TestToRGBAValueScalesWithMagnitude(t *testing.T) {
	f := flow.NewField(flow.Shape{Width: 3, Height: 1})
	f.Set(1, 0, 1, 0)
	f.Set(2, 0, 2, 0)
	img := ToRGBA(f)
	assert.Equal(t, uint8(128), img.RGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), img.RGBAAt(2, 0).R)
}

func TestAngle(t *testing.T) {
	assert.InDelta(t, 0, Angle(1, 0), 1e-9)
	assert.InDelta(t, 90, Angle(0, 1), 1e-9)
	assert.InDelta(t, 180, Angle(-1, 0), 1e-9)
	assert.InDelta(t, 270, Angle(0, -1), 1e-9)
	assert.InDelta(t, 0, Angle(0, 0), 1e-9)
}

func TestPNGSinkWritesFrames(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewPNGSink(PNGSinkConfig{Dir: dir, Scale: 2})
	require.NoError(t, err)
	defer sink.Close()

	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	require.NoError(t, sink.Write(context.Background(), 7, src))

	path := sink.Path(7)
	assert.Equal(t, "frame_000007.png", path[len(dir)+1:])

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	decoded, err := png.Decode(fh)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), decoded.Bounds())
}

func TestPNGSinkHonoursContext(t *testing.T) {
	sink, err := NewPNGSink(PNGSinkConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Write(ctx, 0, image.NewRGBA(image.Rect(0, 0, 1, 1))), context.Canceled)
}

func TestNewPNGSinkRequiresDir(t *testing.T) {
	_, err := NewPNGSink(PNGSinkConfig{})
	assert.Error(t, err)
}
