package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// #region inspect
func newInspectCmd(a *app) *cobra.Command {
	var (
		last    int
		runID   string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recorded runs, or the frame log of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(a.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			if runID != "" {
				return inspectRun(cmd.OutOrStdout(), st, runID, jsonOut)
			}
			return listRuns(cmd.OutOrStdout(), st, last, jsonOut)
		},
	}
	f := cmd.Flags()
	f.IntVar(&last, "last", 20, "show the N most recent runs")
	f.StringVar(&runID, "run", "", "show the frame log of one run")
	f.BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	f.String("db", "", "run log database")
	a.bindFlag(cmd, "store.path", "db")
	return cmd
}

type runRow struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Seed      uint64 `json:"seed"`
	Interval  int    `json:"sampling_interval"`
	Policy    string `json:"policy"`
	Frames    int    `json:"frames"`
	StartedAt string `json:"started_at"`
	Finished  bool   `json:"finished"`
}

func toRunRow(r store.RunRecord) runRow {
	return runRow{
		RunID:     r.RunID,
		Source:    r.Source,
		Seed:      r.Seed,
		Interval:  r.SamplingInterval,
		Policy:    r.Policy,
		Frames:    r.Frames,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Finished:  r.Finished(),
	}
}

func listRuns(out io.Writer, st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = toRunRow(r)
	}
	if jsonOut {
		return writeJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFRAMES\tSEED\tINTERVAL\tPOLICY\tSOURCE")
	for _, r := range rows {
		frames := fmt.Sprint(r.Frames)
		if !r.Finished {
			frames = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.RunID, r.StartedAt, frames, r.Seed, r.Interval, r.Policy, r.Source)
	}
	return tw.Flush()
}

type frameRow struct {
	Index         int     `json:"index"`
	State         string  `json:"state"`
	Directive     string  `json:"directive"`
	Sampling      bool    `json:"sampling"`
	MeanMagnitude float64 `json:"mean_magnitude"`
}

func inspectRun(out io.Writer, st *store.Store, runID string, jsonOut bool) error {
	run, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	frames, err := st.Frames(runID)
	if err != nil {
		return err
	}
	rows := make([]frameRow, len(frames))
	for i, f := range frames {
		rows[i] = frameRow{
			Index:         f.Index,
			State:         f.State.String(),
			Directive:     f.Directive.String(),
			Sampling:      f.Sampling,
			MeanMagnitude: f.MeanMagnitude,
		}
	}
	if jsonOut {
		return writeJSON(out, struct {
			Run    runRow     `json:"run"`
			Frames []frameRow `json:"frames"`
		}{toRunRow(run), rows})
	}

	fmt.Fprintf(out, "run %s  seed %d  interval %d  policy %s\n", run.RunID, run.Seed, run.SamplingInterval, run.Policy)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tSTATE\tDIRECTIVE\tSAMPLING\tMEAN_MAG")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%.4f\n", r.Index, r.State, r.Directive, r.Sampling, r.MeanMagnitude)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion inspect
