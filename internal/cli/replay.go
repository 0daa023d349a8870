package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/akinetopsia/internal/replay"
	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// errReplayMismatch is returned when a replay diverges from the recording.
var errReplayMismatch = errors.New("replay diverged from the recorded run")

// #region replay
func newReplayCmd(a *app) *cobra.Command {
	var (
		fixturePath string
		runID       string
		exportPath  string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-drive a recorded run and check every decision matches",
		Long: "Replay loads a fixture file (--fixture) or a run from the database (--run),\n" +
			"re-drives a controller with the recorded seed and compares each decision.\n" +
			"With --export the run is written out as a fixture instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fixturePath == "") == (runID == "") {
				return fmt.Errorf("exactly one of --fixture or --run is required")
			}
			fx, err := a.loadFixture(fixturePath, runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if exportPath != "" {
				if err := replay.SaveFixture(exportPath, fx); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %d frames to %s\n", len(fx.ExpectedResults), exportPath)
				return nil
			}

			results, err := fx.Run()
			if err != nil {
				return err
			}
			sum := replay.Summarize(results)
			a.logger.Info("Replay finished",
				zap.Int("frames", sum.TotalFrames),
				zap.Int("mismatches", sum.Mismatches),
			)

			for _, r := range results {
				if !r.Match || verbose {
					status := "ok"
					if !r.Match {
						status = "MISMATCH " + r.Reason
					}
					fmt.Fprintf(out, "frame %6d  %-9s %-13s %s\n", r.Frame, r.Actual.State, r.Actual.Directive, status)
				}
			}
			fmt.Fprintf(out, "frames: %d  matches: %d  mismatches: %d\n", sum.TotalFrames, sum.Matches, sum.Mismatches)
			fmt.Fprintf(out, "fresh: %d  reused: %d  substituted: %d  disrupted: %d\n",
				sum.Fresh, sum.Reused, sum.Substituted, sum.Disrupted)
			if sum.Mismatches > 0 {
				return fmt.Errorf("%w: first difference at frame %d", errReplayMismatch, sum.FirstDiff)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&fixturePath, "fixture", "", "fixture JSON file")
	f.StringVar(&runID, "run", "", "run id in the database")
	f.StringVar(&exportPath, "export", "", "write the run as a fixture to this path")
	f.BoolVarP(&verbose, "verbose", "v", false, "print every frame")
	f.String("db", "", "run log database")
	a.bindFlag(cmd, "store.path", "db")
	return cmd
}

func (a *app) loadFixture(path, runID string) (*replay.Fixture, error) {
	if path != "" {
		return replay.LoadFixture(path)
	}
	st, err := store.NewStore(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	run, err := st.GetRun(runID)
	if err != nil {
		return nil, err
	}
	frames, err := st.Frames(runID)
	if err != nil {
		return nil, err
	}
	return replay.FixtureFromRun(run, frames), nil
}

// #endregion replay
