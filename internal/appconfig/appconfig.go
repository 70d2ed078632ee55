// Package appconfig loads the service's own YAML configuration file
// (listen address, Postgres DSN, execution/sweeper timings), modelled on
// tako's internal/config.Load: os.ReadFile + yaml.Unmarshal + a validate pass
// that rejects missing required fields before the caller ever sees the value.
package appconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of maestro.yaml.
type Config struct {
	ListenAddr       string        `yaml:"listenAddr"`
	PostgresDSN      string        `yaml:"postgresDSN"`
	ExecutionTimeout time.Duration `yaml:"executionTimeout"`
	SweepInterval    time.Duration `yaml:"sweepInterval"`
	LogLevel         string        `yaml:"logLevel"`
}

// configDoc is Config's YAML wire shape: durations are written as
// time.ParseDuration strings ("5m", "30s") rather than raw nanosecond
// counts, so UnmarshalYAML decodes through this alias and converts.
type configDoc struct {
	ListenAddr       string `yaml:"listenAddr"`
	PostgresDSN      string `yaml:"postgresDSN"`
	ExecutionTimeout string `yaml:"executionTimeout"`
	SweepInterval    string `yaml:"sweepInterval"`
	LogLevel         string `yaml:"logLevel"`
}

// UnmarshalYAML lets Config's duration fields be written the human-readable
// way ("10m") instead of as raw int64 nanoseconds. Fields the document
// omits are left at whatever defaults() already populated on c.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var doc configDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	if doc.ListenAddr != "" {
		c.ListenAddr = doc.ListenAddr
	}
	if doc.PostgresDSN != "" {
		c.PostgresDSN = doc.PostgresDSN
	}
	if doc.LogLevel != "" {
		c.LogLevel = doc.LogLevel
	}
	if doc.ExecutionTimeout != "" {
		d, err := time.ParseDuration(doc.ExecutionTimeout)
		if err != nil {
			return fmt.Errorf("appconfig: invalid executionTimeout: %w", err)
		}
		c.ExecutionTimeout = d
	}
	if doc.SweepInterval != "" {
		d, err := time.ParseDuration(doc.SweepInterval)
		if err != nil {
			return fmt.Errorf("appconfig: invalid sweepInterval: %w", err)
		}
		c.SweepInterval = d
	}
	return nil
}

// defaults mirror spec §5's 10-minute execution timeout and 1-minute sweep
// interval.
func defaults() Config {
	return Config{
		ListenAddr:       ":8080",
		ExecutionTimeout: 10 * time.Minute,
		SweepInterval:    time.Minute,
		LogLevel:         "info",
	}
}

// Load reads and validates path, filling in unset fields with defaults().
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("appconfig: could not read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("appconfig: could not unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("appconfig: missing required field: postgresDSN")
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("appconfig: missing required field: listenAddr")
	}
	if cfg.ExecutionTimeout <= 0 {
		return fmt.Errorf("appconfig: executionTimeout must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("appconfig: sweepInterval must be positive")
	}
	return nil
}
