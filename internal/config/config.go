package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tsindex configuration.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ScanConfig controls section building and the sparse time index.
type ScanConfig struct {
	// TimeToleranceSec and RateTolerance accept negative values to select
	// the defaults: half a sample period and a relative 1e-4.
	TimeToleranceSec float64 `yaml:"time_tolerance_sec"`
	RateTolerance    float64 `yaml:"rate_tolerance"`

	// SubIndexIntervalSec bounds the resolution of the time index.
	SubIndexIntervalSec int `yaml:"sub_index_interval_sec"`

	// KeepPaths disables absolute path resolution of input files.
	KeepPaths bool `yaml:"keep_paths"`

	// ScanTimeUpdates stamps new/changed rows with the scan time instead
	// of the file modification time.
	ScanTimeUpdates bool `yaml:"scan_time_updates"`
}

// CatalogConfig selects and tunes the persistence backend.
type CatalogConfig struct {
	Table             string `yaml:"table"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteBusyTimeout int    `yaml:"sqlite_busy_timeout_ms"`
	PostgresDSN       string `yaml:"postgres_dsn"`
}

// SubIndexInterval returns the configured interval as a duration.
func (c ScanConfig) SubIndexInterval() time.Duration {
	if c.SubIndexIntervalSec <= 0 {
		return time.Hour
	}
	return time.Duration(c.SubIndexIntervalSec) * time.Second
}

// Load reads a YAML config file at path and merges it with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}
