// Package config loads runtime configuration from an optional YAML
// file with SMARTPDF_* environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"smartpdf/internal/common"
)

const envPrefix = "SMARTPDF_"

// Config holds application configuration
type Config struct {
	WorkingDir      string `koanf:"working_dir"`
	DatabasePath    string `koanf:"database_path"`
	GhostscriptPath string `koanf:"ghostscript_path"`
	HTTPAddr        string `koanf:"http_addr"`
	MaxWorkers      int    `koanf:"max_workers"`
	LogLevel        string `koanf:"log_level"`
}

// Load reads configuration with precedence: environment variables over
// the YAML file over defaults. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	// SMARTPDF_WORKING_DIR -> working_dir
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := os.MkdirAll(cfg.WorkingDir, common.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, common.DefaultFilePermissions); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = filepath.Join(os.TempDir(), "smartpdf")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.WorkingDir, "smartpdf.sqlite3")
	}
	if cfg.GhostscriptPath == "" {
		if path, err := exec.LookPath("gs"); err == nil {
			cfg.GhostscriptPath = path
		}
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MaxWorkers <= 0 || cfg.MaxWorkers > common.MaxConcurrencyLimit {
		cfg.MaxWorkers = common.MaxConcurrencyLimit
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// NewLogger builds the process logger at the configured level.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
