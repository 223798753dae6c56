package app

import "errors"

// Config holds everything the application needs to run, assembled by the
// CLI layer.
type Config struct {
	ConfigPath string // HCL configuration file

	LogFormat string
	LogLevel  string

	// Overrides for the corresponding dataset settings; zero values leave
	// the configuration untouched.
	OutputDir string
	Workers   int
	Seed      *uint64

	// DryRun resolves and records parameters without invoking a simulator.
	DryRun bool
	// Progress enables the terminal progress tracker.
	Progress bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
