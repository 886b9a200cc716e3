package config

// Option defines a configuration option that can be passed to Load
type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
	configDirs []string
}

func defaultOptions() *options {
	return &options{
		envPrefix:  defaultEnvPrefix,
		configDirs: []string{"/etc", "$HOME/.config/socmonitor"},
	}
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "SOCMONITOR"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithConfigDirs replaces the directories searched for socmonitor.toml.
func WithConfigDirs(dirs ...string) Option {
	return func(o *options) {
		o.configDirs = dirs
	}
}
