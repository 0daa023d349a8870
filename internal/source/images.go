package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// #region image-sequence
// ImageSequence plays a sorted list of still images as video.
type ImageSequence struct {
	paths []string
	next  int
	size  flow.Shape
}

// NewImageSequence matches pattern, or every image in it when pattern is a
// directory, and sorts the result lexically. A valid size resizes every
// frame to that working resolution.
func NewImageSequence(pattern string, size flow.Shape) (*ImageSequence, error) {
	if pattern == "" {
		return nil, fmt.Errorf("image sequence: empty path")
	}
	if fi, err := os.Stat(pattern); err == nil && fi.IsDir() {
		pattern = filepath.Join(pattern, "*")
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("image sequence: %w", err)
	}
	var paths []string
	for _, m := range matches {
		if imageExts[strings.ToLower(filepath.Ext(m))] {
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("image sequence: no images match %q", pattern)
	}
	sort.Strings(paths)
	return &ImageSequence{paths: paths, size: size}, nil
}

// Len is the number of frames in the sequence.
func (s *ImageSequence) Len() int { return len(s.paths) }

// Next decodes the next image.
func (s *ImageSequence) Next(ctx context.Context) (flow.Frame, error) {
	if err := ctx.Err(); err != nil {
		return flow.Frame{}, err
	}
	if s.next >= len(s.paths) {
		return flow.Frame{}, io.EOF
	}
	path := s.paths[s.next]
	s.next++

	img, err := decodeFile(path)
	if err != nil {
		return flow.Frame{}, fmt.Errorf("image sequence: %s: %w", path, err)
	}
	if s.size.Valid() {
		b := img.Bounds()
		if b.Dx() != s.size.Width || b.Dy() != s.size.Height {
			img = resize.Resize(uint(s.size.Width), uint(s.size.Height), img, resize.Bilinear)
		}
	}
	return flow.FrameFromImage(img), nil
}

// Close releases nothing; files are closed after each decode.
func (s *ImageSequence) Close() error { return nil }

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// #endregion image-sequence
