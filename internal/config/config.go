// Package config loads globfs command configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents globfs configuration options.
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// IncludeDotFiles makes watch-mode tracking follow dot files and
	// dot directories. Matches reported by one-shot reads always
	// include dot entries regardless of this setting.
	IncludeDotFiles bool `yaml:"include_dot_files"`

	// Debounce is how long watch mode waits after a change before
	// re-evaluating the glob, coalescing bursts of events.
	Debounce time.Duration `yaml:"debounce"`

	// Patterns are glob patterns evaluated when none are given on the
	// command line.
	Patterns []string `yaml:"patterns"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		IncludeDotFiles: false,
		Debounce:        250 * time.Millisecond,
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without
// error. If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}

	return cfg, nil
}
