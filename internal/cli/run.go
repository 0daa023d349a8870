package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/pipeline"
	"github.com/danielpatrickdp/akinetopsia/internal/store"
)

// #region run
func newRunCmd(a *app) *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a video through the disruption controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				a.cfg.Controller.RandomSeed = &seed
			}
			return a.run(cmd)
		},
	}
	f := cmd.Flags()
	f.String("source", "", "video file, image directory or glob")
	f.String("source-kind", "", "images, ffmpeg or capture")
	f.String("engine", "", "farneback or remote")
	f.String("engine-address", "", "address of a remote flow engine")
	f.String("output", "", "window, png or none")
	f.String("dir", "", "directory for png output")
	f.Int("max-frames", 0, "stop after this many frames")
	f.String("db", "", "run log database; empty disables recording")
	f.Int64Var(&seed, "seed", 0, "random seed for the Markov chain")

	a.bindFlag(cmd, "source.path", "source")
	a.bindFlag(cmd, "source.kind", "source-kind")
	a.bindFlag(cmd, "engine.kind", "engine")
	a.bindFlag(cmd, "engine.address", "engine-address")
	a.bindFlag(cmd, "render.output", "output")
	a.bindFlag(cmd, "render.dir", "dir")
	a.bindFlag(cmd, "pipeline.max_frames", "max-frames")
	a.bindFlag(cmd, "store.path", "db")
	return cmd
}

func (a *app) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := a.cfg

	ctrlCfg, err := cfg.Controller.ToControllerConfig()
	if err != nil {
		return err
	}
	ctrl, err := disruption.New(ctrlCfg)
	if err != nil {
		return err
	}

	src, err := openSource(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	engine, closeEngine, err := openEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer closeEngine()

	sink, err := openSink(cfg.Render)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer sink.Close()

	opts := []pipeline.Option{pipeline.WithSink(sink), pipeline.WithLogger(a.logger)}

	var (
		st  *store.Store
		rec store.RunRecord
	)
	if cfg.Store.Path != "" {
		st, err = store.NewStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		rec, err = st.CreateRun(store.RunRecord{
			Source:           cfg.Source.Path,
			Seed:             ctrl.Seed(),
			SamplingInterval: ctrl.Interval(),
			InitialState:     ctrlCfg.InitialState,
			Model:            ctrl.Model(),
			Policy:           ctrl.Policy().Name(),
			Width:            cfg.Source.Width,
			Height:           cfg.Source.Height,
		})
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithRecorder(pipeline.NewStoreRecorder(st, rec.RunID)))
	}

	a.logger.Info("Starting run",
		zap.String("source", cfg.Source.Path),
		zap.String("engine", cfg.Engine.Kind),
		zap.Uint64("seed", ctrl.Seed()),
		zap.Int("sampling_interval", ctrl.Interval()),
		zap.String("policy", ctrl.Policy().Name()),
		zap.String("run_id", rec.RunID),
	)

	runner := pipeline.NewRunner(cfg.Pipeline.ToPipelineConfig(), ctrl, src, engine, opts...)
	sum, runErr := runner.Run(ctx)

	if st != nil {
		if err := st.FinishRun(rec.RunID, sum.Frames); err != nil {
			a.logger.Error("Failed to finish run record", zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if rec.RunID != "" {
		fmt.Fprintf(out, "run:         %s\n", rec.RunID)
	}
	fmt.Fprintf(out, "seed:        %d\n", ctrl.Seed())
	fmt.Fprintf(out, "frames:      %d (skipped %d)\n", sum.Frames, sum.Skipped)
	fmt.Fprintf(out, "fresh:       %d\n", sum.Stats.Fresh)
	fmt.Fprintf(out, "reused:      %d\n", sum.Stats.Reused)
	fmt.Fprintf(out, "substituted: %d\n", sum.Stats.Substituted)
	fmt.Fprintf(out, "disrupted:   %d\n", sum.Stats.Disrupted)
	return nil
}

// #endregion run
