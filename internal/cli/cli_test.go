package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/akinetopsia/internal/analysis"
	"github.com/danielpatrickdp/akinetopsia/internal/flow"
	"github.com/danielpatrickdp/akinetopsia/internal/flowsvc"
)

// #region helpers
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeFrames writes n grayscale PNGs with a bright square moving right.
func writeFrames(t *testing.T, n, w, h int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 1; y < 3; y++ {
			for x := i; x < i+2 && x < w; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return dir
}

// startEngine serves a zero-motion engine on a loopback port.
func startEngine(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	engine := flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		return flow.NewField(curr.Shape()), nil
	})
	srv := flowsvc.NewGRPCServer(engine, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

// #endregion helpers

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestSimulateMatchesStationaryDistribution(t *testing.T) {
	out, err := execute(t, "simulate", "--steps", "100000", "--seed", "42", "--json")
	require.NoError(t, err)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Passed)
	require.NotEmpty(t, report.Metrics)
	assert.Equal(t, "disrupted_fraction", report.Metrics[0].Name)
	assert.InDelta(t, 1.0/7.0, report.Metrics[0].Value, 0.01)
}

func TestSimulateFailsOutsideTolerance(t *testing.T) {
	out, err := execute(t, "simulate", "--steps", "1000", "--seed", "42", "--tolerance", "1e-12")
	require.Error(t, err)
	assert.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "FAIL")
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controller:\n  sampling_interval: 0\n"), 0o644))
	_, err := execute(t, "--config", path, "simulate", "--steps", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling_interval")
}

func TestReplayFixture(t *testing.T) {
	out, err := execute(t, "replay", "--fixture", filepath.Join("..", "replay", "testdata", "alternating.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "mismatches: 0")
}

func TestReplayNeedsExactlyOneInput(t *testing.T) {
	_, err := execute(t, "replay")
	assert.Error(t, err)
	_, err = execute(t, "replay", "--fixture", "a.json", "--run", "b")
	assert.Error(t, err)
}

func TestRunRecordInspectReplay(t *testing.T) {
	frames := writeFrames(t, 6, 8, 6)
	db := filepath.Join(t.TempDir(), "runs.db")
	addr := startEngine(t)

	out, err := execute(t, "run",
		"--source", frames,
		"--engine", "remote",
		"--engine-address", addr,
		"--output", "none",
		"--db", db,
		"--seed", "7",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "seed:        7")

	out, err = execute(t, "inspect", "--db", db, "--json")
	require.NoError(t, err)
	var runs []runRow
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Finished)
	assert.Equal(t, uint64(7), runs[0].Seed)
	assert.Equal(t, 5, runs[0].Interval)
	assert.Positive(t, runs[0].Frames)

	out, err = execute(t, "inspect", "--db", db, "--run", runs[0].RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "run "+runs[0].RunID)
	assert.Contains(t, out, "DIRECTIVE")

	out, err = execute(t, "replay", "--db", db, "--run", runs[0].RunID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "mismatches: 0")

	fixture := filepath.Join(t.TempDir(), "fixture.json")
	_, err = execute(t, "replay", "--db", db, "--run", runs[0].RunID, "--export", fixture)
	require.NoError(t, err)
	out, err = execute(t, "replay", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "mismatches: 0")
}

func TestRunRequiresSource(t *testing.T) {
	_, err := execute(t, "run", "--engine", "remote", "--output", "none", "--db", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.path")
}
