package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jakenelson/dockerfixture/internal/container"
	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/process"
)

// Config represents the full configuration structure
type Config struct {
	Runtime     RuntimeConfig     `mapstructure:"runtime"`
	Readiness   ReadinessConfig   `mapstructure:"readiness"`
	Log         LogConfig         `mapstructure:"log"`
	Fixtures    FixturesConfig    `mapstructure:"fixtures"`
	Environment EnvironmentConfig `mapstructure:"environment"`
}

// RuntimeConfig selects the container runtime CLI
type RuntimeConfig struct {
	Binary string `mapstructure:"binary"` // docker, podman, auto, or a path
	Label  string `mapstructure:"label"`
}

// ReadinessConfig tunes the readiness polling
type ReadinessConfig struct {
	CIDInterval   time.Duration `mapstructure:"cid_interval"`
	StateInterval time.Duration `mapstructure:"state_interval"`
	PortInterval  time.Duration `mapstructure:"port_interval"`
	PortWarnAfter time.Duration `mapstructure:"port_warn_after"`
	TCPFiles      []string      `mapstructure:"tcp_files"`
}

// LogConfig configures logging
type LogConfig struct {
	Debug      bool   `mapstructure:"debug"`
	Dir        string `mapstructure:"dir"` // empty disables the log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// FixturesConfig locates the fixture file
type FixturesConfig struct {
	File string `mapstructure:"file"`
}

// EnvironmentConfig configures environment variables
type EnvironmentConfig struct {
	// Passthrough names host variables copied into every fixture container
	// when set on the host and not declared by the fixture itself.
	Passthrough []string `mapstructure:"passthrough"`
}

// LoadConfig loads configuration from viper with defaults
func LoadConfig() *Config {
	setDefaults()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		// Return defaults on error
		return defaultConfig()
	}
	return cfg
}

// DockerOptions converts the runtime and readiness settings.
func (c *Config) DockerOptions(runner process.Runner) container.Options {
	return container.Options{
		Binary:        c.Runtime.Binary,
		Label:         c.Runtime.Label,
		CIDInterval:   c.Readiness.CIDInterval,
		StateInterval: c.Readiness.StateInterval,
		PortInterval:  c.Readiness.PortInterval,
		PortWarnAfter: c.Readiness.PortWarnAfter,
		TCPFiles:      c.Readiness.TCPFiles,
		Runner:        runner,
	}
}

// LogFile converts the log file settings.
func (c *Config) LogFile() logger.FileConfig {
	return logger.FileConfig{
		Dir:        c.Log.Dir,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxAgeDays: c.Log.MaxAgeDays,
		MaxBackups: c.Log.MaxBackups,
	}
}

func setDefaults() {
	// Runtime defaults
	viper.SetDefault("runtime.binary", container.DefaultBinary)
	viper.SetDefault("runtime.label", container.DefaultLabel)

	// Readiness defaults
	viper.SetDefault("readiness.cid_interval", container.DefaultCIDInterval)
	viper.SetDefault("readiness.state_interval", container.DefaultStateInterval)
	viper.SetDefault("readiness.port_interval", container.DefaultPortInterval)
	viper.SetDefault("readiness.port_warn_after", container.DefaultPortWarnAfter)
	viper.SetDefault("readiness.tcp_files", container.DefaultTCPFiles)

	// Log defaults
	viper.SetDefault("log.debug", false)
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.max_size_mb", 20)
	viper.SetDefault("log.max_age_days", 7)
	viper.SetDefault("log.max_backups", 3)

	// Fixture defaults
	viper.SetDefault("fixtures.file", DefaultFixturesFile)

	// Environment defaults
	viper.SetDefault("environment.passthrough", []string{})
}

func defaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Binary: container.DefaultBinary,
			Label:  container.DefaultLabel,
		},
		Readiness: ReadinessConfig{
			CIDInterval:   container.DefaultCIDInterval,
			StateInterval: container.DefaultStateInterval,
			PortInterval:  container.DefaultPortInterval,
			PortWarnAfter: container.DefaultPortWarnAfter,
			TCPFiles:      container.DefaultTCPFiles,
		},
		Log: LogConfig{
			MaxSizeMB:  20,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Fixtures: FixturesConfig{
			File: DefaultFixturesFile,
		},
		Environment: EnvironmentConfig{
			Passthrough: []string{},
		},
	}
}
