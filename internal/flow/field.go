package flow

import (
	"image"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// #region frame-constructors
// NewFrame allocates a black frame of the given size.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// FrameFromImage converts any image to a grayscale frame.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || gray.Stride != b.Dx() || b.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	pix := make([]uint8, b.Dx()*b.Dy())
	copy(pix, gray.Pix)
	return Frame{Width: b.Dx(), Height: b.Dy(), Pix: pix}
}

// Gray returns the frame as an *image.Gray sharing the pixel buffer.
func (f Frame) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// #endregion frame-constructors

// #region field-constructors
// NewField allocates a zero field of the given shape.
func NewField(s Shape) Field {
	return Field{Width: s.Width, Height: s.Height, Vec: make([]float32, 2*s.Pixels())}
}

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	vec := make([]float32, len(f.Vec))
	copy(vec, f.Vec)
	return Field{Width: f.Width, Height: f.Height, Vec: vec}
}

// #endregion field-constructors

// #region field-access
// At returns the flow vector at (x, y).
func (f Field) At(x, y int) (dx, dy float32) {
	i := 2 * (y*f.Width + x)
	return f.Vec[i], f.Vec[i+1]
}

// Set stores the flow vector at (x, y).
func (f Field) Set(x, y int, dx, dy float32) {
	i := 2 * (y*f.Width + x)
	f.Vec[i] = dx
	f.Vec[i+1] = dy
}

// IsZero reports whether every component is zero.
func (f Field) IsZero() bool {
	for _, v := range f.Vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// #endregion field-access

// #region field-stats
// Magnitudes returns the per-pixel vector length, row-major.
func (f Field) Magnitudes() []float64 {
	mags := make([]float64, len(f.Vec)/2)
	for i := range mags {
		mags[i] = math.Hypot(float64(f.Vec[2*i]), float64(f.Vec[2*i+1]))
	}
	return mags
}

// MeanMagnitude is the average vector length; zero for an empty field.
func (f Field) MeanMagnitude() float64 {
	mags := f.Magnitudes()
	if len(mags) == 0 {
		return 0
	}
	return stat.Mean(mags, nil)
}

// MaxMagnitude is the longest vector length; zero for an empty field.
func (f Field) MaxMagnitude() float64 {
	mags := f.Magnitudes()
	if len(mags) == 0 {
		return 0
	}
	return floats.Max(mags)
}

// #endregion field-stats
