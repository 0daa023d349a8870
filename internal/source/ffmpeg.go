package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region ffmpeg-config
// FFmpegConfig configures an FFmpeg source.
type FFmpegConfig struct {
	Binary string     // ffmpeg executable
	Probe  string     // ffprobe executable, used when Size is unset
	Path   string     // media file
	Size   flow.Shape // output size; zero probes the native size
}

// DefaultFFmpegConfig looks both tools up on PATH.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{Binary: "ffmpeg", Probe: "ffprobe"}
}

// #endregion ffmpeg-config

// #region ffmpeg-source
// FFmpeg decodes a video through an ffmpeg child process that writes raw
// 8-bit gray frames to its stdout.
type FFmpeg struct {
	cmd    *exec.Cmd
	out    *bufio.Reader
	stderr *bytes.Buffer
	shape  flow.Shape
	done   bool
}

// NewFFmpeg starts ffmpeg for cfg.Path. The process is tied to ctx.
func NewFFmpeg(ctx context.Context, cfg FFmpegConfig) (*FFmpeg, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ffmpeg source: empty path")
	}
	shape := cfg.Size
	if !shape.Valid() {
		probed, err := probeSize(ctx, cfg.Probe, cfg.Path)
		if err != nil {
			return nil, err
		}
		shape = probed
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, ffmpegArgs(cfg.Path, shape)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg source: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg source: start: %w", err)
	}
	return &FFmpeg{
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, shape.Pixels()),
		stderr: stderr,
		shape:  shape,
	}, nil
}

// Shape is the size of every frame this source yields.
func (s *FFmpeg) Shape() flow.Shape { return s.shape }

// Next reads one frame. At end of stream it waits for ffmpeg and reports
// its failure, if any, instead of io.EOF.
func (s *FFmpeg) Next(ctx context.Context) (flow.Frame, error) {
	if err := ctx.Err(); err != nil {
		return flow.Frame{}, err
	}
	if s.done {
		return flow.Frame{}, io.EOF
	}
	frame, err := readFrame(s.out, s.shape)
	if errors.Is(err, io.EOF) {
		s.done = true
		if werr := s.cmd.Wait(); werr != nil {
			return flow.Frame{}, fmt.Errorf("ffmpeg source: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
		}
		return flow.Frame{}, io.EOF
	}
	if err != nil {
		return flow.Frame{}, fmt.Errorf("ffmpeg source: %w", err)
	}
	return frame, nil
}

// Close stops ffmpeg if it is still running.
func (s *FFmpeg) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// #endregion ffmpeg-source

// #region helpers
func ffmpegArgs(path string, shape flow.Shape) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vf", fmt.Sprintf("scale=%d:%d", shape.Width, shape.Height),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}
}

// readFrame reads exactly one frame. A clean end of stream is io.EOF; a
// partial trailing frame is io.ErrUnexpectedEOF.
func readFrame(r io.Reader, shape flow.Shape) (flow.Frame, error) {
	frame := flow.NewFrame(shape.Width, shape.Height)
	if _, err := io.ReadFull(r, frame.Pix); err != nil {
		return flow.Frame{}, err
	}
	return frame, nil
}

func probeSize(ctx context.Context, probe, path string) (flow.Shape, error) {
	cmd := exec.CommandContext(ctx, probe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path)
	out, err := cmd.Output()
	if err != nil {
		return flow.Shape{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDimensions(string(out))
}

// parseDimensions parses ffprobe's "WxH" output.
func parseDimensions(out string) (flow.Shape, error) {
	dims := strings.Split(strings.TrimSpace(out), "x")
	if len(dims) != 2 {
		return flow.Shape{}, fmt.Errorf("unexpected ffprobe output: %q", out)
	}
	w, werr := strconv.Atoi(dims[0])
	h, herr := strconv.Atoi(dims[1])
	if werr != nil || herr != nil {
		return flow.Shape{}, fmt.Errorf("failed to parse width/height from: %q", out)
	}
	shape := flow.Shape{Width: w, Height: h}
	if !shape.Valid() {
		return flow.Shape{}, fmt.Errorf("ffprobe reported empty frame size %s", shape)
	}
	return shape, nil
}

// #endregion helpers
