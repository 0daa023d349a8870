package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/akinetopsia/internal/config"
	"github.com/danielpatrickdp/akinetopsia/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=x".
var Version = "0.1.0"

// app carries the state shared by every subcommand of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	// flag bindings per command, applied only for the command being run
	// since several commands expose the same key.
	bindings map[*cobra.Command]map[string]string
}

// #region root
// NewRootCmd builds the command tree. Each call gets its own viper instance,
// so tests can build as many as they like.
func NewRootCmd() *cobra.Command {
	a := &app{
		v:        viper.New(),
		logger:   zap.NewNop(),
		bindings: make(map[*cobra.Command]map[string]string),
	}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:           "akinetopsia",
		Short:         "Akinetopsia simulates motion blindness over a video stream.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyBindings(cmd); err != nil {
				return err
			}
			if err := a.initializeConfig(); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				logging.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "akinetopsia"})
				return err
			}
			a.cfg = cfg
			logging.InitializeLogger(cfg.Logger)
			a.logger = logging.GetLogger()
			a.logger.Debug("Configuration loaded", zap.String("version", Version), zap.String("config_file", a.v.ConfigFileUsed()))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newRunCmd(a),
		newSimulateCmd(a),
		newReplayCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the command tree with ctx and flushes the logger.
func Execute(ctx context.Context, args []string) error {
	defer logging.Sync()
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// #endregion root

// #region config
// initializeConfig reads the config file and environment into a.v.
func (a *app) initializeConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(config.EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}

// bindFlag ties a command flag to a config key once cmd is chosen to run.
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if a.bindings[cmd] == nil {
		a.bindings[cmd] = make(map[string]string)
	}
	a.bindings[cmd][key] = flag
}

func (a *app) applyBindings(cmd *cobra.Command) error {
	for key, flag := range a.bindings[cmd] {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag --%s: %w", flag, err)
		}
	}
	return nil
}

// #endregion config
