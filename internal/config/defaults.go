package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/histcore",
			SQLiteFile: "history.db",
		},
		Retention: RetentionConfig{
			Days:                90,
			ExpireIntervalHours: 24,
		},
		Capture: CaptureConfig{
			AllowedSchemes:  []string{"http", "https", "ftp", "file"},
			DenylistDomains: []string{},
			DenylistRegex:   []string{},
		},
		Cache: CacheConfig{
			PrefixResults: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
