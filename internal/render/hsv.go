package render

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// flatRange is the magnitude spread below which a field is treated as flat.
const flatRange = 1e-9

// #region to-rgba
// ToRGBA renders a flow field as an HSV motion image: hue is the flow
// direction over the full circle, saturation is full, and value is the
// magnitude min-max normalized into [0,255]. A field whose magnitudes are all
// equal, including the all-zero field, renders black.
func ToRGBA(f flow.Field) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Width*f.Height == 0 {
		return img
	}

	mags := f.Magnitudes()
	lo, hi := floats.Min(mags), floats.Max(mags)
	span := hi - lo

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			if span <= flatRange {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
				continue
			}
			dx, dy := f.At(x, y)
			v := (mags[i] - lo) / span
			img.SetRGBA(x, y, hsv(Angle(dx, dy), 1, v))
		}
	}
	return img
}

// Angle returns the direction of (dx, dy) in degrees, in [0, 360).
func Angle(dx, dy float32) float64 {
	deg := math.Atan2(float64(dy), float64(dx)) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// #endregion to-rgba

// #region hsv
// hsv converts hue in degrees, saturation and value in [0,1] to opaque RGBA.
func hsv(h, s, v float64) color.RGBA {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	return color.RGBA{
		R: channel(r + m),
		G: channel(g + m),
		B: channel(b + m),
		A: 0xff,
	}
}

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// #endregion hsv
