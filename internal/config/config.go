package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/workers"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultSamplePeriod     = 10
	DefaultArchivePath      = "/var/lib/socmonitor/archive.db"
	DefaultArchiveBatchSize = 30
	DefaultArchiveFlush     = 60

	defaultEnvPrefix = "SOCMONITOR"
	autoLogFile      = "auto"
)

type Config struct {
	SamplePeriod int      `mapstructure:"sample_period"`
	OutputPeriod int      `mapstructure:"output_period"`
	Verbose      bool     `mapstructure:"verbose"`
	Debug        bool     `mapstructure:"debug"`
	Beautify     bool     `mapstructure:"beautify"`
	LogFile      string   `mapstructure:"log_file"`
	Workers      []string `mapstructure:"workers"`
	Hooks        Hooks    `mapstructure:"hooks"`
	Archive      Archive  `mapstructure:"archive"`

	// Thresholds are optional; nil means unset.
	MinimumSoC *float64 `mapstructure:"-"`
	MaximumSoC *float64 `mapstructure:"-"`

	ShowVersion bool `mapstructure:"-"`
}

// Hooks holds the external commands run at lifecycle transitions.
type Hooks struct {
	OnStart      string `mapstructure:"on_start"`
	OnEnd        string `mapstructure:"on_end"`
	OnMinimumSoC string `mapstructure:"on_minimum_soc"`
	OnMaximumSoC string `mapstructure:"on_maximum_soc"`
}

// Archive configures the optional SQLite sample archive. FlushInterval is in
// seconds; zero flushes only on batch size or close.
type Archive struct {
	Enabled       bool   `mapstructure:"enabled"`
	DBPath        string `mapstructure:"db_path"`
	BatchSize     int    `mapstructure:"batch_size"`
	FlushInterval int    `mapstructure:"flush_interval"`
}

// flagBindings maps viper keys to flag names.
var flagBindings = map[string]string{
	"sample_period":        "sample-period",
	"output_period":        "output-period",
	"verbose":              "verbose",
	"debug":                "debug",
	"beautify":             "beautify",
	"log_file":             "log-file",
	"minimum_soc":          "minimum-soc",
	"maximum_soc":          "maximum-soc",
	"workers":              "workers",
	"hooks.on_start":       "cmd-start",
	"hooks.on_end":         "cmd-end",
	"hooks.on_minimum_soc": "cmd-min-soc",
	"hooks.on_maximum_soc": "cmd-max-soc",
	"archive.db_path":      "archive",
	"config":               "config",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("socmonitor", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.Int("sample-period", 0, "Delay in seconds between measurements; must divide --output-period")
	fs.Int("output-period", 0, "Delay in seconds between outputs; must be a multiple of --sample-period")
	fs.BoolP("verbose", "v", false, "Print more information")
	fs.Bool("debug", false, "Enable debug logging")
	fs.BoolP("beautify", "b", false, "Print information in human readable form")
	fs.StringP("log-file", "l", "", "Append output to this file (generated name if no value is given)")
	fs.Lookup("log-file").NoOptDefVal = autoLogFile
	fs.Float64("minimum-soc", 0, "Terminate when the state of charge is at or below this percentage")
	fs.Float64("maximum-soc", 0, "Terminate when the state of charge is at or above this percentage")
	fs.String("cmd-start", "", "Command executed when monitoring starts")
	fs.String("cmd-end", "", "Command executed when monitoring ends")
	fs.String("cmd-min-soc", "", "Command executed when --minimum-soc terminates monitoring")
	fs.String("cmd-max-soc", "", "Command executed when --maximum-soc terminates monitoring")
	fs.StringSliceP("workers", "w", nil, "Background load workers to run (cpuload)")
	fs.String("archive", "", "Record samples to this SQLite database")
	fs.String("config", "", "Path to a TOML configuration file")
	fs.Bool("version", false, "Print version and exit")

	return fs
}

// Load reads configuration from flags, environment and an optional TOML file,
// in that order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, name := range flagBindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("archive.batch_size", DefaultArchiveBatchSize)
	v.SetDefault("archive.flush_interval", DefaultArchiveFlush)

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	cfg.ShowVersion, _ = fs.GetBool("version")

	if v.IsSet("minimum_soc") {
		minimum := v.GetFloat64("minimum_soc")
		cfg.MinimumSoC = &minimum
	}
	if v.IsSet("maximum_soc") {
		maximum := v.GetFloat64("maximum_soc")
		cfg.MaximumSoC = &maximum
	}

	applyPeriodDefaults(cfg, v.IsSet("sample_period"), v.IsSet("output_period"))

	if cfg.LogFile == autoLogFile {
		cfg.LogFile = generatedLogFile(time.Now())
	}

	if cfg.Archive.DBPath != "" {
		cfg.Archive.Enabled = true
	} else if cfg.Archive.Enabled {
		cfg.Archive.DBPath = DefaultArchivePath
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path = v.GetString("config")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("socmonitor")
		for _, dir := range o.configDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// applyPeriodDefaults fills in whichever period was not given. With neither
// given both fall back to DefaultSamplePeriod.
func applyPeriodDefaults(cfg *Config, sampleSet, outputSet bool) {
	switch {
	case !sampleSet && !outputSet:
		cfg.SamplePeriod = DefaultSamplePeriod
		cfg.OutputPeriod = DefaultSamplePeriod
	case !sampleSet:
		cfg.SamplePeriod = cfg.OutputPeriod
	case !outputSet:
		cfg.OutputPeriod = cfg.SamplePeriod
	}
}

func generatedLogFile(now time.Time) string {
	return fmt.Sprintf("socmonitor_%s_%s.log", now.Format("2006-01-02_15-04-05"), runtime.GOOS)
}

// Validate checks the settings that must hold before a session starts.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.SamplePeriod <= 0 {
		return errFactory.WithData(errors.ErrInvalidSamplePeriod, c.SamplePeriod)
	}
	if c.OutputPeriod <= 0 || c.OutputPeriod%c.SamplePeriod != 0 {
		return errFactory.WithData(errors.ErrInvalidOutputPeriod, c.OutputPeriod)
	}

	for _, threshold := range []*float64{c.MinimumSoC, c.MaximumSoC} {
		if threshold != nil && (*threshold < 0 || *threshold > 100) {
			return errFactory.WithData(errors.ErrInvalidThreshold, *threshold)
		}
	}
	if c.MinimumSoC != nil && c.MaximumSoC != nil && *c.MinimumSoC >= *c.MaximumSoC {
		return errFactory.WithMessage(errors.ErrInvalidThreshold,
			fmt.Sprintf("minimum state of charge %.2f must be below maximum %.2f", *c.MinimumSoC, *c.MaximumSoC))
	}

	for _, name := range c.Workers {
		if _, err := workers.ParseKind(name); err != nil {
			return err
		}
	}

	if c.Archive.Enabled && c.Archive.DBPath == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "archive enabled without a database path")
	}

	return nil
}

// OutputEvery returns how many samples pass between two emitted reports.
func (c *Config) OutputEvery() int {
	return c.OutputPeriod / c.SamplePeriod
}

// SampleInterval returns the sample period as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SamplePeriod) * time.Second
}
