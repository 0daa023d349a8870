package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/akinetopsia/internal/analysis"
	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
)

// errChecksFailed is returned when a simulated chain strays from its model.
var errChecksFailed = errors.New("simulation did not match the transition model")

// #region simulate
func newSimulateCmd(a *app) *cobra.Command {
	var (
		steps   int
		seed    int64
		jsonOut bool
	)
	acfg := analysis.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the Markov chain alone and compare it with its stationary behaviour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				a.cfg.Controller.RandomSeed = &seed
			}
			ctrlCfg, err := a.cfg.Controller.ToControllerConfig()
			if err != nil {
				return err
			}
			states, err := analysis.Simulate(ctrlCfg.Model, ctrlCfg.InitialState, steps,
				disruption.NewCategoricalSampler(uint64(*ctrlCfg.Seed)))
			if err != nil {
				return err
			}
			report := analysis.Evaluate(ctrlCfg.Model, states, acfg)
			a.logger.Info("Simulation finished",
				zap.Int("steps", report.Steps),
				zap.Int64("seed", *ctrlCfg.Seed),
				zap.Bool("passed", report.Passed),
			)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "steps: %d  seed: %d\n", report.Steps, *ctrlCfg.Seed)
				for _, m := range report.Metrics {
					mark := "ok"
					if !m.Pass {
						mark = "FAIL"
					}
					fmt.Fprintf(out, "  %-22s %10.6f  expected %10.6f  %s\n", m.Name, m.Value, m.Expected, mark)
				}
			}
			if !report.Passed {
				return fmt.Errorf("%w: %s", errChecksFailed, report.Reason)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&steps, "steps", 100000, "number of transitions to draw")
	f.Int64Var(&seed, "seed", 0, "random seed")
	f.Float64Var(&acfg.Tolerance, "tolerance", acfg.Tolerance, "allowed deviation of the disrupted fraction")
	f.IntVar(&acfg.BurnIn, "burn-in", acfg.BurnIn, "leading states ignored")
	f.BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// #endregion simulate
