package cli

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/akinetopsia/internal/flowsvc"
)

// #region serve
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local Farneback engine over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openLocalEngine(a.cfg.Engine)
			if err != nil {
				return err
			}
			lis, err := net.Listen("tcp", a.cfg.Engine.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.Engine.Listen, err)
			}
			srv := flowsvc.NewGRPCServer(engine, a.logger)

			go func() {
				<-ctx.Done()
				srv.GracefulStop()
			}()
			a.logger.Info("Flow engine listening", zap.String("addr", lis.Addr().String()))
			if err := srv.Serve(lis); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("listen", "", "address to listen on")
	a.bindFlag(cmd, "engine.listen", "listen")
	return cmd
}

// #endregion serve
