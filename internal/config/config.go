// Package config loads host configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the default config path.
const EnvPath = "COROHOST_CONFIG"

// HostConfig holds configuration for the script host.
type HostConfig struct {
	Engine       string        `yaml:"engine"`        // lua or js; empty detects from the script extension
	LogLevel     string        `yaml:"log_level"`     // debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`    // text, json
	TickInterval time.Duration `yaml:"tick_interval"` // scheduler cadence (default 1ms)
	Sandbox      bool          `yaml:"sandbox"`
	Libraries    []string      `yaml:"libraries"`    // empty opens all libraries
	HistoryDB    string        `yaml:"history_db"`   // run history path; empty disables history
	HTTPTimeout  time.Duration `yaml:"http_timeout"` // per-request bound; zero means none
	ModuleDir    string        `yaml:"module_dir"`   // search root for require
	Listen       string        `yaml:"listen"`       // serve address
}

// DefaultHostConfig returns sensible defaults.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		LogLevel:     "warn",
		LogFormat:    "text",
		TickInterval: time.Millisecond,
		HTTPTimeout:  30 * time.Second,
		Listen:       "127.0.0.1:8420",
	}
}

// Load reads path over the defaults. An empty path falls back to
// $COROHOST_CONFIG; when neither is set the defaults are returned. A
// missing file named only by the environment is not an error.
func Load(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c HostConfig) Validate() error {
	switch c.Engine {
	case "", "lua", "js":
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.TickInterval < 0 {
		return errors.New("tick_interval must not be negative")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("http_timeout must not be negative")
	}
	if c.Listen == "" {
		return errors.New("listen must not be empty")
	}
	return nil
}
