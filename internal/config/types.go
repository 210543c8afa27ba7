// Package config provides configuration management for wpmigrate:
// defaults, the YAML config file, WPMIGRATE_ environment variables, and
// CLI flags, merged in ascending precedence.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks configuration errors; the CLI maps it to its
// own exit code.
var ErrInvalidConfig = errors.New("invalid configuration")

// DBConfig holds connection settings for one database.
type DBConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	// SSLMode applies to the target store only.
	SSLMode string `koanf:"sslmode"`
}

// RetryConfig bounds every source and target store call.
type RetryConfig struct {
	MaxAttempts    int `koanf:"max_attempts"`
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

// Config holds all run configuration.
type Config struct {
	Legacy    DBConfig    `koanf:"legacy"`
	Target    DBConfig    `koanf:"target"`
	ChunkSize int         `koanf:"chunk_size"`
	StatePath string      `koanf:"state_path"`
	ReportDir string      `koanf:"report_dir"`
	Retry     RetryConfig `koanf:"retry"`
	Verbose   bool        `koanf:"verbose"`
}

// Validate checks the configuration values that every command depends
// on. Connectivity is checked lazily by the commands that need it.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1, got %d", ErrInvalidConfig, c.Retry.MaxAttempts)
	}
	if c.Retry.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: retry.timeout_seconds must be at least 1, got %d", ErrInvalidConfig, c.Retry.TimeoutSeconds)
	}
	return nil
}

// ValidateDatabases checks the settings only commands touching the
// databases need, so version and history work without any of them.
func (c *Config) ValidateDatabases() error {
	if c.Legacy.Database == "" {
		return fmt.Errorf("%w: legacy.database is required", ErrInvalidConfig)
	}
	if c.Target.Database == "" {
		return fmt.Errorf("%w: target.database is required", ErrInvalidConfig)
	}
	return nil
}
