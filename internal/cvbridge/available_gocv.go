//go:build gocv

package cvbridge

// Available reports whether the package was built against OpenCV.
const Available = true
