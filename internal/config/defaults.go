package config

// Default returns a Config populated with all default values.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			TimeToleranceSec:    -1,
			RateTolerance:       -1,
			SubIndexIntervalSec: 3600,
		},
		Catalog: CatalogConfig{
			Table:             "tsindex",
			SQLiteBusyTimeout: 10000,
		},
	}
}
