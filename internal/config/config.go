// Package config resolves where a plaindb data directory and its schema live.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDataDir is used when no data directory is configured.
	DefaultDataDir = "data"
	// SchemaFile is the default schema file name inside the data directory.
	SchemaFile = "schema.json"

	EnvDataDir  = "PDB_DATA_DIR"
	EnvSchema   = "PDB_SCHEMA"
	EnvLogLevel = "PDB_LOG_LEVEL"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	DataDir    string `json:"data_dir"`
	SchemaPath string `json:"schema"`
	LogLevel   string `json:"log_level"`
}

// Overrides holds values given explicitly, typically command-line flags.
// Empty fields are not set.
type Overrides struct {
	DataDir    string
	SchemaPath string
	LogLevel   string
}

// Resolve combines overrides, the environment and the global config file.
// For each setting the first non-empty source wins: overrides, environment,
// global config, default.
func Resolve(o Overrides) (*Config, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:    firstNonEmpty(o.DataDir, os.Getenv(EnvDataDir), global.DataDir, DefaultDataDir),
		SchemaPath: firstNonEmpty(o.SchemaPath, os.Getenv(EnvSchema), global.Schema),
		LogLevel:   firstNonEmpty(o.LogLevel, os.Getenv(EnvLogLevel), global.LogLevel, "info"),
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = filepath.Join(cfg.DataDir, SchemaFile)
	}
	cfg.SchemaPath = ExpandPath(cfg.SchemaPath)

	if err := ValidateDataDir(cfg.DataDir); err != nil {
		return nil, err
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ErrInvalidDataDir is returned when the data directory cannot be used.
var ErrInvalidDataDir = errors.New("invalid data directory")

// ValidateDataDir checks that path is a directory or does not exist yet.
func ValidateDataDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Created on first use
		}
		return fmt.Errorf("%w: %w", ErrInvalidDataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDataDir, path)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
