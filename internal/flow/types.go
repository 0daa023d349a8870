package flow

import (
	"errors"
	"fmt"
)

// #region errors
// ErrShapeMismatch is returned when two frames, or a frame and a field, differ in size.
var ErrShapeMismatch = errors.New("shape mismatch")

// #endregion errors

// #region shape
// Shape is the spatial size of a frame or flow field.
type Shape struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Pixels returns Width*Height.
func (s Shape) Pixels() int {
	return s.Width * s.Height
}

// Valid reports whether both dimensions are positive.
func (s Shape) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// CheckShapes returns ErrShapeMismatch (wrapped with both sizes) when a and b differ.
func CheckShapes(a, b Shape) error {
	if a != b {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a, b)
	}
	return nil
}

// #endregion shape

// #region frame
// Frame is a single grayscale video frame. Pix is row-major, one byte per pixel.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// Shape returns the frame size.
func (f Frame) Shape() Shape {
	return Shape{Width: f.Width, Height: f.Height}
}

// #endregion frame

// #region field
// Field is a dense optical-flow field. Vec holds interleaved (dx, dy) pairs,
// row-major, so len(Vec) == 2*Width*Height.
type Field struct {
	Width  int
	Height int
	Vec    []float32
}

// Shape returns the field size.
func (f Field) Shape() Shape {
	return Shape{Width: f.Width, Height: f.Height}
}

// #endregion field
