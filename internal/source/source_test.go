package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

func writePNG(t *testing.T, path string, w, h int, v uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageSequenceSortedPlayback(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 3, 20)
	writePNG(t, filepath.Join(dir, "a.png"), 4, 3, 10)
	writePNG(t, filepath.Join(dir, "c.png"), 4, 3, 30)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	seq, err := NewImageSequence(dir, flow.Shape{})
	require.NoError(t, err)
	defer seq.Close()
	assert.Equal(t, 3, seq.Len())

	ctx := context.Background()
	for _, want := range []uint8{10, 20, 30} {
		f, err := seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, flow.Shape{Width: 4, Height: 3}, f.Shape())
		assert.Equal(t, want, f.Pix[0])
	}
	_, err = seq.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestImageSequenceResizes(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame.png"), 8, 8, 100)

	seq, err := NewImageSequence(filepath.Join(dir, "*.png"), flow.Shape{Width: 4, Height: 2})
	require.NoError(t, err)
	f, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, flow.Shape{Width: 4, Height: 2}, f.Shape())
	assert.Len(t, f.Pix, 8)
}

func TestImageSequenceDecodesJPEG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 5, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(filepath.Join(dir, "frame.jpg"))
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	seq, err := NewImageSequence(dir, flow.Shape{})
	require.NoError(t, err)
	frame, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Greater(t, frame.Pix[12], uint8(240))
}

func TestImageSequenceNoMatches(t *testing.T) {
	_, err := NewImageSequence(filepath.Join(t.TempDir(), "*.png"), flow.Shape{})
	assert.Error(t, err)

	_, err = NewImageSequence("", flow.Shape{})
	assert.Error(t, err)
}

func TestImageSequenceHonoursContext(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2, 0)
	seq, err := NewImageSequence(dir, flow.Shape{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = seq.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFrame(t *testing.T) {
	shape := flow.Shape{Width: 3, Height: 2}
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	r := bytes.NewReader(raw)

	f, err := readFrame(r, shape)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, f.Pix)

	f, err = readFrame(r, shape)
	require.NoError(t, err)
	assert.Equal(t, []uint8{7, 8, 9, 10, 11, 12}, f.Pix)

	_, err = readFrame(r, shape)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = readFrame(bytes.NewReader(nil), shape)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("in.mp4", flow.Shape{Width: 320, Height: 240})
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "in.mp4",
		"-vf", "scale=320:240",
		"-f", "rawvideo", "-pix_fmt", "gray", "-",
	}, args)
}

func TestParseDimensions(t *testing.T) {
	s, err := parseDimensions("1920x1080\n")
	require.NoError(t, err)
	assert.Equal(t, flow.Shape{Width: 1920, Height: 1080}, s)

	for _, bad := range []string{"", "1920", "axb", "0x10"} {
		_, err := parseDimensions(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Config{Kind: "webcam"})
	assert.Error(t, err)
}
