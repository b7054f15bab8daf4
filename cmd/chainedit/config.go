package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/rendis/attackchain/internal/autosave"
)

// Config holds all chainedit configuration.
// Priority: env vars > config.toml > defaults.
type Config struct {
	DBPath         string  `toml:"db_path" validate:"required"`
	CatalogPath    string  `toml:"catalog_path"`
	LogLevel       string  `toml:"log_level" validate:"oneof=debug info warn error"`
	AutosaveSpec   string  `toml:"autosave_spec" validate:"required"`
	ViewportWidth  float64 `toml:"viewport_width" validate:"gt=0"`
	ViewportHeight float64 `toml:"viewport_height" validate:"gt=0"`
}

func defaultConfig() Config {
	return Config{
		DBPath:         filepath.Join(chaineditDir(), "chains.db"),
		LogLevel:       "info",
		AutosaveSpec:   autosave.DefaultSpec,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

// chaineditDir is ~/.chainedit unless CHAINEDIT_HOME points elsewhere.
func chaineditDir() string {
	if v := os.Getenv("CHAINEDIT_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chainedit"
	}
	return filepath.Join(home, ".chainedit")
}

func configPath() string {
	return filepath.Join(chaineditDir(), "config.toml")
}

func binDir() string {
	return filepath.Join(chaineditDir(), "bin")
}

func loadConfig() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: config.toml (ignore if missing).
	if _, err := toml.DecodeFile(configPath(), &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", configPath(), err)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("CHAINEDIT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CHAINEDIT_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("CHAINEDIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CHAINEDIT_AUTOSAVE"); v != "" {
		cfg.AutosaveSpec = v
	}
	if v := os.Getenv("CHAINEDIT_VIEWPORT_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ViewportWidth = f
		}
	}
	if v := os.Getenv("CHAINEDIT_VIEWPORT_HEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ViewportHeight = f
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.CatalogPath != new.CatalogPath {
		d.RestartNeeded = append(d.RestartNeeded, "catalog_path")
	}
	if old.AutosaveSpec != new.AutosaveSpec {
		d.RestartNeeded = append(d.RestartNeeded, "autosave_spec")
	}
	if old.ViewportWidth != new.ViewportWidth || old.ViewportHeight != new.ViewportHeight {
		d.RestartNeeded = append(d.RestartNeeded, "viewport")
	}
	return d
}
