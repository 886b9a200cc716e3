package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	return config.Load(args, config.WithConfigDirs(t.TempDir()), config.WithEnvPrefix("SOCMONITOR_TEST"))
}

func float(v float64) *float64 {
	return &v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.SamplePeriod)
	assert.Equal(t, 10, cfg.OutputPeriod)
	assert.False(t, cfg.Verbose)
	assert.False(t, cfg.Beautify)
	assert.Empty(t, cfg.LogFile)
	assert.Nil(t, cfg.MinimumSoC)
	assert.Nil(t, cfg.MaximumSoC)
	assert.Empty(t, cfg.Workers)
	assert.False(t, cfg.Archive.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadPeriodDefaults(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantSample int
		wantOutput int
	}{
		{name: "only sample", args: []string{"--sample-period", "5"}, wantSample: 5, wantOutput: 5},
		{name: "only output", args: []string{"--output-period", "30"}, wantSample: 30, wantOutput: 30},
		{name: "both", args: []string{"--sample-period", "5", "--output-period", "60"}, wantSample: 5, wantOutput: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSample, cfg.SamplePeriod)
			assert.Equal(t, tt.wantOutput, cfg.OutputPeriod)
		})
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load(t,
		"-v", "-b",
		"--minimum-soc", "20",
		"--maximum-soc", "80",
		"--cmd-start", "echo start",
		"--cmd-min-soc", "notify-send low",
		"-w", "cpuload,cpuload",
		"--archive", "/tmp/socmonitor.db",
	)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.Beautify)
	require.NotNil(t, cfg.MinimumSoC)
	require.NotNil(t, cfg.MaximumSoC)
	assert.InDelta(t, 20.0, *cfg.MinimumSoC, 1e-9)
	assert.InDelta(t, 80.0, *cfg.MaximumSoC, 1e-9)
	assert.Equal(t, "echo start", cfg.Hooks.OnStart)
	assert.Equal(t, "notify-send low", cfg.Hooks.OnMinimumSoC)
	assert.Equal(t, []string{"cpuload", "cpuload"}, cfg.Workers)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "/tmp/socmonitor.db", cfg.Archive.DBPath)
	assert.Equal(t, config.DefaultArchiveBatchSize, cfg.Archive.BatchSize)
	assert.Equal(t, config.DefaultArchiveFlush, cfg.Archive.FlushInterval)
}

func TestLoadZeroThresholdIsSet(t *testing.T) {
	cfg, err := load(t, "--minimum-soc", "0")
	require.NoError(t, err)
	require.NotNil(t, cfg.MinimumSoC)
	assert.Zero(t, *cfg.MinimumSoC)
}

func TestLoadGeneratedLogFile(t *testing.T) {
	cfg, err := load(t, "-l")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cfg.LogFile, "socmonitor_"), cfg.LogFile)
	assert.True(t, strings.HasSuffix(cfg.LogFile, ".log"), cfg.LogFile)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "socmonitor.toml")
	content := []byte(`
sample_period = 5
output_period = 15
beautify = true
minimum_soc = 10
workers = ["cpuload"]

[hooks]
on_end = "echo bye"

[archive]
enabled = true
batch_size = 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load([]string{"--output-period", "20"}, config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.SamplePeriod)
	assert.Equal(t, 20, cfg.OutputPeriod, "flags override the file")
	assert.True(t, cfg.Beautify)
	require.NotNil(t, cfg.MinimumSoC)
	assert.InDelta(t, 10.0, *cfg.MinimumSoC, 1e-9)
	assert.Nil(t, cfg.MaximumSoC)
	assert.Equal(t, []string{"cpuload"}, cfg.Workers)
	assert.Equal(t, "echo bye", cfg.Hooks.OnEnd)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, config.DefaultArchivePath, cfg.Archive.DBPath)
	assert.Equal(t, 5, cfg.Archive.BatchSize)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socmonitor.toml")
	require.NoError(t, os.WriteFile(path, []byte("This is not a valid TOML file"), 0o600))

	_, err := config.Load(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SOCMONITOR_TEST_SAMPLE_PERIOD", "3")
	t.Setenv("SOCMONITOR_TEST_MAXIMUM_SOC", "95")

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.SamplePeriod)
	assert.Equal(t, 3, cfg.OutputPeriod)
	require.NotNil(t, cfg.MaximumSoC)
	assert.InDelta(t, 95.0, *cfg.MaximumSoC, 1e-9)
}

func TestLoadVersionFlag(t *testing.T) {
	cfg, err := load(t, "--version")
	require.NoError(t, err)
	assert.True(t, cfg.ShowVersion)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{SamplePeriod: 5, OutputPeriod: 10}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "zero sample period", mutate: func(c *config.Config) { c.SamplePeriod = 0 }, code: errors.ErrInvalidSamplePeriod},
		{name: "negative sample period", mutate: func(c *config.Config) { c.SamplePeriod = -5 }, code: errors.ErrInvalidSamplePeriod},
		{name: "output not a multiple", mutate: func(c *config.Config) { c.OutputPeriod = 12 }, code: errors.ErrInvalidOutputPeriod},
		{name: "output zero", mutate: func(c *config.Config) { c.OutputPeriod = 0 }, code: errors.ErrInvalidOutputPeriod},
		{name: "threshold above range", mutate: func(c *config.Config) { c.MaximumSoC = float(101) }, code: errors.ErrInvalidThreshold},
		{name: "threshold below range", mutate: func(c *config.Config) { c.MinimumSoC = float(-1) }, code: errors.ErrInvalidThreshold},
		{
			name: "minimum above maximum",
			mutate: func(c *config.Config) {
				c.MinimumSoC = float(80)
				c.MaximumSoC = float(20)
			},
			code: errors.ErrInvalidThreshold,
		},
		{
			name: "consistent thresholds",
			mutate: func(c *config.Config) {
				c.MinimumSoC = float(20)
				c.MaximumSoC = float(80)
			},
		},
		{name: "unknown worker", mutate: func(c *config.Config) { c.Workers = []string{"gpuLoad"} }, code: errors.ErrInvalidWorker},
		{name: "legacy worker name", mutate: func(c *config.Config) { c.Workers = []string{"cpuLoad"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestOutputEvery(t *testing.T) {
	cfg := &config.Config{SamplePeriod: 5, OutputPeriod: 30}
	assert.Equal(t, 6, cfg.OutputEvery())
}
