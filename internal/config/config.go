// Package config provides unified configuration loading for acpsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config contains all acpsim configuration settings.
type Config struct {
	// Simulation is the experiment configuration handed to the core.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures the SQLite result store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Backup configures result-store archives.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// LoggingConfig configures acpsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables per-step episode traces in TraceDir.
	Level string `json:"level" yaml:"level"`

	// TraceDir is where episode traces are written. Default: ~/.acpsim/traces.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// StoreConfig configures result persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// MetricsConfig configures metrics exposition.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9464". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// BackupConfig configures `acpsim backup`.
type BackupConfig struct {
	// Dir holds archives. Default: ~/.acpsim/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig bounds how many archives are kept. An archive survives if
// any configured limit keeps it.
type RetentionConfig struct {
	MaxCount     int    `json:"max_count" yaml:"max_count"`
	MaxAge       string `json:"max_age,omitempty" yaml:"max_age,omitempty"`               // e.g. "30d", "2w"
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"` // e.g. "500MB"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: DefaultSimulationConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Path: defaultPath("acpsim.db"),
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{MaxCount: 10},
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.acpsim/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".acpsim", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath is Load with an explicit config file. An empty path falls back
// to Load; otherwise the file replaces ~/.acpsim/config.yaml and
// environment variables still apply.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Environment overrides are not applied.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := unmarshalYAML(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("invalid backup.retention.max_count: %d (must be >= 0)", c.Backup.Retention.MaxCount)
	}

	return nil
}

// TraceDir returns the configured trace directory or its default.
func (c *Config) TraceDir() string {
	if c.Logging.TraceDir != "" {
		return c.Logging.TraceDir
	}
	return defaultPath("traces")
}

// BackupDir returns the configured archive directory or its default.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return defaultPath("backups")
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ACPSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ACPSIM_TRACE_DIR"); v != "" {
		config.Logging.TraceDir = v
	}
	if v := os.Getenv("ACPSIM_DB"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("ACPSIM_BACKUP_DIR"); v != "" {
		config.Backup.Dir = v
	}
	if v := os.Getenv("ACPSIM_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}

	if v := os.Getenv("ACPSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.RandomSeed = n
		}
	}
	if v := os.Getenv("ACPSIM_EPISODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.NumEpisodes = n
		}
	}
	if v := os.Getenv("ACPSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}
	if v := os.Getenv("ACPSIM_FIXED_TOPOLOGY"); v != "" {
		config.Simulation.FixedTopology = v == "true" || v == "1"
	}
}

// defaultPath returns ~/.acpsim/name, or name when HOME is unavailable.
func defaultPath(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(homeDir, ".acpsim", name)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
