package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all asyncshell configuration.
type Config struct {
	// Server identity reported by initialize
	Server ServerConfig `yaml:"server" json:"server"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution" json:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig identifies the server to protocol clients.
type ServerConfig struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// Tool calls served concurrently
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "asyncshell",
			Version: "0.1.0",
			Workers: 8,
		},

		Execution: ExecutionConfig{
			SyncTimeout:     "5s",
			DefaultShell:    "bash",
			AllowedShells:   []string{"bash", "sh", "zsh"},
			ShutdownTimeout: "0s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASYNCSHELL_SYNC_TIMEOUT"); v != "" {
		c.Execution.SyncTimeout = v
	}
	if v := os.Getenv("ASYNCSHELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ASYNCSHELL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// GetSyncTimeout returns the sync deadline as a duration.
func (c *Config) GetSyncTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.SyncTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// GetShutdownTimeout returns how long to wait for detached tasks on exit.
// Zero means wait until they finish.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.ShutdownTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Workers < 1 || c.Server.Workers > 100 {
		return fmt.Errorf("invalid server.workers: %d (want 1-100)", c.Server.Workers)
	}
	if d, err := time.ParseDuration(c.Execution.SyncTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid execution.sync_timeout: %q", c.Execution.SyncTimeout)
	}
	if c.Execution.ShutdownTimeout != "" {
		if d, err := time.ParseDuration(c.Execution.ShutdownTimeout); err != nil || d < 0 {
			return fmt.Errorf("invalid execution.shutdown_timeout: %q", c.Execution.ShutdownTimeout)
		}
	}
	if len(c.Execution.AllowedShells) == 0 {
		return fmt.Errorf("execution.allowed_shells must not be empty")
	}
	if !slices.Contains(c.Execution.AllowedShells, c.Execution.DefaultShell) {
		return fmt.Errorf("execution.default_shell %q is not in allowed_shells %v", c.Execution.DefaultShell, c.Execution.AllowedShells)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("invalid logging.format: %q", c.Logging.Format)
	}

	return nil
}
