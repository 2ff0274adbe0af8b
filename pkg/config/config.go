// Package config provides configuration structures for the benchmark toolkit.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quackbench/quackbench/pkg/errors"
)

// Default resource limits keep a run inside MotherDuck's free-tier
// ceilings; operators raise them explicitly.
const (
	DefaultDatabase    = "contoso_benchmark"
	DefaultSchema      = "main"
	DefaultThreads     = 1
	DefaultMaxMemoryMB = 256
)

// Config represents the toolkit configuration. Values are resolved in
// order: built-in defaults, then the env file, then the process
// environment, then explicit flags. Nothing reads the environment
// implicitly after construction.
type Config struct {
	// Connection settings
	Database           string `mapstructure:"database"`
	Schema             string `mapstructure:"schema"`
	Token              string `mapstructure:"token"`
	Threads            int    `mapstructure:"threads"`
	MaxMemoryMB        int    `mapstructure:"max_memory_mb"`
	TempDirectory      string `mapstructure:"temp_directory"`
	ExtensionDirectory string `mapstructure:"extension_directory"`

	// Benchmark settings
	EnvFile     string `mapstructure:"env_file"`
	QueryFile   string `mapstructure:"query_file"`
	SamplesDir  string `mapstructure:"samples_dir"`
	PreviewRows int    `mapstructure:"preview_rows"`
	LogLevel    string `mapstructure:"log_level"`

	// Scaling configuration
	Scale ScaleConfig `mapstructure:"scale"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ScaleConfig configures the incremental table scaler.
type ScaleConfig struct {
	TargetRows      int64         `mapstructure:"target_rows"`
	Unit            int64         `mapstructure:"unit"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	BaseTable       string        `mapstructure:"base_table"`
	TargetTable     string        `mapstructure:"target_table"`
	View            string        `mapstructure:"view"`
	MultiplierTable string        `mapstructure:"multiplier_table"`
	// Yes skips every interactive confirmation, so the scaler can run
	// unattended or under test.
	Yes bool `mapstructure:"yes"`
}

// MetricsConfig configures the optional Prometheus endpoint exposed
// during long-running scale jobs.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.Threads <= 0 {
		return errors.New(errors.CodeConfigInvalid, "threads must be a positive integer")
	}
	if c.MaxMemoryMB <= 0 {
		return errors.New(errors.CodeConfigInvalid, "max-memory-mb must be a positive integer")
	}
	if c.PreviewRows < 0 {
		return errors.New(errors.CodeConfigInvalid, "preview-rows must not be negative")
	}
	if c.TempDirectory == "" {
		c.TempDirectory = DefaultTempDirectory()
	}
	if c.ExtensionDirectory == "" {
		c.ExtensionDirectory = filepath.Join(c.TempDirectory, "extensions")
	}

	if c.Scale.Unit <= 0 {
		c.Scale.Unit = 1_000_000_000
	}
	if c.Scale.Cooldown <= 0 {
		c.Scale.Cooldown = 15 * time.Second
	}
	if c.Scale.BaseTable == "" {
		c.Scale.BaseTable = "contoso_sales_240k"
	}
	if c.Scale.TargetTable == "" {
		c.Scale.TargetTable = "contoso_sales_24b_scaled"
	}
	if c.Scale.View == "" {
		c.Scale.View = "contoso_sales_24b"
	}
	if c.Scale.MultiplierTable == "" {
		c.Scale.MultiplierTable = "temp_1b"
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	return nil
}

// ResolveToken fills Token from the process environment when no
// explicit value was given. The env file has already been applied to
// the environment by the time this runs, so precedence is flag, then
// process env, then env file. Absence is a fatal configuration error.
func (c *Config) ResolveToken() error {
	if c.Token != "" {
		return nil
	}
	if token := os.Getenv("MOTHERDUCK_TOKEN"); token != "" {
		c.Token = token
		return nil
	}
	if token := os.Getenv("motherduck_token"); token != "" {
		c.Token = token
		return nil
	}
	return errors.ErrTokenMissing
}

// DefaultTempDirectory returns TMPDIR/duckdb, falling back to /tmp.
func DefaultTempDirectory() string {
	base := os.Getenv("TMPDIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "duckdb")
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{
		Database:    DefaultDatabase,
		Schema:      DefaultSchema,
		Threads:     DefaultThreads,
		MaxMemoryMB: DefaultMaxMemoryMB,
		LogLevel:    "info",
	}
	// Validate never fails on positive defaults.
	_ = cfg.Validate()
	return cfg
}
