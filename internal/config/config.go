package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
	"github.com/danielpatrickdp/akinetopsia/internal/pipeline"
	"github.com/danielpatrickdp/akinetopsia/internal/render"
	"github.com/danielpatrickdp/akinetopsia/internal/source"
)

// EnvPrefix prefixes every environment override, e.g. AKINETOPSIA_CONTROLLER_SAMPLING_INTERVAL.
const EnvPrefix = "AKINETOPSIA"

// #region config
// Config is the full application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Controller ControllerConfig `mapstructure:"controller" yaml:"controller"`
	Source     SourceConfig     `mapstructure:"source" yaml:"source"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// LoggerConfig configures zap.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"` // empty disables file output
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ControllerConfig configures the disruption controller.
type ControllerConfig struct {
	TransitionMatrix [][]float64 `mapstructure:"transition_matrix" yaml:"transition_matrix"`
	SamplingInterval int         `mapstructure:"sampling_interval" yaml:"sampling_interval"`
	InitialState     string      `mapstructure:"initial_state" yaml:"initial_state"`
	RandomSeed       *int64      `mapstructure:"random_seed" yaml:"random_seed"`
	Policy           string      `mapstructure:"policy" yaml:"policy"`
	NoiseSigma       float64     `mapstructure:"noise_sigma" yaml:"noise_sigma"`
}

// SourceConfig selects the frame source.
type SourceConfig struct {
	Kind   string `mapstructure:"kind" yaml:"kind"` // images, ffmpeg, capture
	Path   string `mapstructure:"path" yaml:"path"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
}

// EngineConfig selects the flow engine.
type EngineConfig struct {
	Kind      string          `mapstructure:"kind" yaml:"kind"` // farneback, remote
	Address   string          `mapstructure:"address" yaml:"address"`
	Listen    string          `mapstructure:"listen" yaml:"listen"`
	Timeout   time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	Farneback FarnebackConfig `mapstructure:"farneback" yaml:"farneback"`
}

// FarnebackConfig holds OpenCV's dense flow parameters.
type FarnebackConfig struct {
	PyrScale   float64 `mapstructure:"pyr_scale" yaml:"pyr_scale"`
	Levels     int     `mapstructure:"levels" yaml:"levels"`
	WinSize    int     `mapstructure:"win_size" yaml:"win_size"`
	Iterations int     `mapstructure:"iterations" yaml:"iterations"`
	PolyN      int     `mapstructure:"poly_n" yaml:"poly_n"`
	PolySigma  float64 `mapstructure:"poly_sigma" yaml:"poly_sigma"`
	Flags      int     `mapstructure:"flags" yaml:"flags"`
}

// RenderConfig selects where visualized frames go.
type RenderConfig struct {
	Output     string  `mapstructure:"output" yaml:"output"` // window, png, none
	Dir        string  `mapstructure:"dir" yaml:"dir"`
	Scale      float64 `mapstructure:"scale" yaml:"scale"`
	WindowName string  `mapstructure:"window_name" yaml:"window_name"`
}

// PipelineConfig tunes the frame loop.
type PipelineConfig struct {
	FrameDelay     time.Duration `mapstructure:"frame_delay" yaml:"frame_delay"`
	Prefetch       int           `mapstructure:"prefetch" yaml:"prefetch"`
	MaxFrames      int           `mapstructure:"max_frames" yaml:"max_frames"`
	SkipMismatched bool          `mapstructure:"skip_mismatched" yaml:"skip_mismatched"`
}

// StoreConfig configures the SQLite run log.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty disables the run log
}

// #endregion config

// #region defaults
// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "akinetopsia")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Controller --
	ctrl := disruption.DefaultConfig()
	v.SetDefault("controller.transition_matrix", ctrl.Model.Rows())
	v.SetDefault("controller.sampling_interval", ctrl.SamplingInterval)
	v.SetDefault("controller.initial_state", ctrl.InitialState.String())
	v.SetDefault("controller.policy", disruption.PolicyZero)
	v.SetDefault("controller.noise_sigma", 1.0)

	// -- Source --
	v.SetDefault("source.kind", source.KindImages)
	v.SetDefault("source.width", 0)
	v.SetDefault("source.height", 0)

	// -- Engine --
	v.SetDefault("engine.kind", EngineFarneback)
	v.SetDefault("engine.address", "localhost:50061")
	v.SetDefault("engine.listen", ":50061")
	v.SetDefault("engine.timeout", "5s")
	v.SetDefault("engine.farneback.pyr_scale", 0.5)
	v.SetDefault("engine.farneback.levels", 3)
	v.SetDefault("engine.farneback.win_size", 15)
	v.SetDefault("engine.farneback.iterations", 3)
	v.SetDefault("engine.farneback.poly_n", 5)
	v.SetDefault("engine.farneback.poly_sigma", 1.2)
	v.SetDefault("engine.farneback.flags", 0)

	// -- Render --
	png := render.DefaultPNGSinkConfig()
	v.SetDefault("render.output", OutputPNG)
	v.SetDefault("render.dir", png.Dir)
	v.SetDefault("render.scale", png.Scale)
	v.SetDefault("render.window_name", "Akinetopsia Simulation")

	// -- Pipeline --
	pl := pipeline.DefaultConfig()
	v.SetDefault("pipeline.frame_delay", pl.FrameDelay)
	v.SetDefault("pipeline.prefetch", pl.Prefetch)
	v.SetDefault("pipeline.max_frames", 0)
	v.SetDefault("pipeline.skip_mismatched", false)

	// -- Store --
	v.SetDefault("store.path", "akinetopsia.db")
}

// NewDefaultConfig returns the configuration with every default applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration invalid: %v", err))
	}
	return cfg
}

// #endregion defaults

// #region from-viper
// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// random_seed has no default, so AutomaticEnv alone would never see it.
	_ = v.BindEnv("controller.random_seed")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// #endregion from-viper

// #region validate
// Engine kinds.
const (
	EngineFarneback = "farneback"
	EngineRemote    = "remote"
)

// Render outputs.
const (
	OutputWindow = "window"
	OutputPNG    = "png"
	OutputNone   = "none"
)

// Source kinds beyond those in package source.
const SourceCapture = "capture"

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		errs = append(errs, fmt.Errorf("logger.level: %w", err))
	}
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}

	if _, err := c.Controller.model(); err != nil {
		errs = append(errs, fmt.Errorf("controller.transition_matrix: %w", err))
	}
	if c.Controller.SamplingInterval <= 0 {
		errs = append(errs, fmt.Errorf("controller.sampling_interval must be a positive integer"))
	}
	if _, err := disruption.ParseState(c.Controller.InitialState); err != nil {
		errs = append(errs, fmt.Errorf("controller.initial_state: %w", err))
	}
	if _, err := disruption.NewPolicy(c.Controller.Policy, c.Controller.NoiseSigma, 0); err != nil {
		errs = append(errs, fmt.Errorf("controller.policy: %w", err))
	}

	switch c.Source.Kind {
	case source.KindImages, source.KindFFmpeg, SourceCapture:
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not one of images, ffmpeg, capture", c.Source.Kind))
	}
	if c.Source.Width < 0 || c.Source.Height < 0 {
		errs = append(errs, fmt.Errorf("source.width and source.height must not be negative"))
	}

	switch c.Engine.Kind {
	case EngineFarneback:
	case EngineRemote:
		if c.Engine.Address == "" {
			errs = append(errs, fmt.Errorf("engine.address is required for the remote engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind %q is not one of farneback, remote", c.Engine.Kind))
	}

	switch c.Render.Output {
	case OutputWindow, OutputNone:
	case OutputPNG:
		if c.Render.Dir == "" {
			errs = append(errs, fmt.Errorf("render.dir is required for png output"))
		}
	default:
		errs = append(errs, fmt.Errorf("render.output %q is not one of window, png, none", c.Render.Output))
	}

	if c.Pipeline.FrameDelay < 0 {
		errs = append(errs, fmt.Errorf("pipeline.frame_delay must not be negative"))
	}
	if c.Pipeline.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_frames must not be negative"))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region conversions
func (c ControllerConfig) model() (disruption.TransitionModel, error) {
	return disruption.NewTransitionModel(c.TransitionMatrix)
}

// ToControllerConfig builds the controller configuration. An unset seed is
// drawn from the clock here, so that the value can be logged and recorded
// with the run.
func (c ControllerConfig) ToControllerConfig() (disruption.Config, error) {
	model, err := c.model()
	if err != nil {
		return disruption.Config{}, err
	}
	initial, err := disruption.ParseState(c.InitialState)
	if err != nil {
		return disruption.Config{}, err
	}
	seed := time.Now().UnixNano()
	if c.RandomSeed != nil {
		seed = *c.RandomSeed
	}
	// The noise policy gets its own stream so it never shifts the chain's draws.
	policy, err := disruption.NewPolicy(c.Policy, c.NoiseSigma, disruption.PolicySeed(seed))
	if err != nil {
		return disruption.Config{}, err
	}
	return disruption.Config{
		Model:            model,
		SamplingInterval: c.SamplingInterval,
		InitialState:     initial,
		Seed:             &seed,
		Policy:           policy,
	}, nil
}

// ToSourceConfig converts to the source package's configuration.
func (c SourceConfig) ToSourceConfig() source.Config {
	return source.Config{Kind: c.Kind, Path: c.Path, Width: c.Width, Height: c.Height}
}

// ToPipelineConfig converts to the pipeline package's configuration.
func (c PipelineConfig) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		FrameDelay:     c.FrameDelay,
		Prefetch:       c.Prefetch,
		MaxFrames:      c.MaxFrames,
		SkipMismatched: c.SkipMismatched,
	}
}

// ToPNGSinkConfig converts to the render package's PNG sink configuration.
func (c RenderConfig) ToPNGSinkConfig() render.PNGSinkConfig {
	return render.PNGSinkConfig{Dir: c.Dir, Scale: c.Scale}
}

// #endregion conversions
