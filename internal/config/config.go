// Package config loads the histcore YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "~/.config/histcore/config.yaml"

// Config holds all histcore configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Capture   CaptureConfig   `yaml:"capture"`
	Cache     CacheConfig     `yaml:"cache"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type RetentionConfig struct {
	Days                int `yaml:"days"`
	ExpireIntervalHours int `yaml:"expire_interval_hours"`
}

type CaptureConfig struct {
	AllowedSchemes  []string `yaml:"allowed_schemes"`
	DenylistDomains []string `yaml:"denylist_domains"`
	DenylistRegex   []string `yaml:"denylist_regex"`
}

type CacheConfig struct {
	// PrefixResults caps TypedPrefix lookups.
	PrefixResults int `yaml:"prefix_results"`
}

type SyncConfig struct {
	// CacheGUID identifies this installation as a sync originator.
	CacheGUID string `yaml:"cache_guid"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Sync.CacheGUID == "" {
		cfg.Sync.CacheGUID = uuid.Must(uuid.NewV7()).String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.Sync.CacheGUID = uuid.Must(uuid.NewV7()).String()

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// DatabasePath returns the expanded SQLite file path.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// RetentionWindow returns how long visits are kept. Zero disables expiry.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

// ExpireInterval returns how often the retention sweep runs.
func (c *Config) ExpireInterval() time.Duration {
	return time.Duration(c.Retention.ExpireIntervalHours) * time.Hour
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be >= 0, got %d", c.Retention.Days)
	}
	if c.Retention.ExpireIntervalHours <= 0 {
		return fmt.Errorf("retention.expire_interval_hours must be > 0, got %d", c.Retention.ExpireIntervalHours)
	}
	if c.Storage.SQLiteFile == "" {
		return errors.New("storage.sqlite_file must not be empty")
	}
	for _, expr := range c.Capture.DenylistRegex {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("capture.denylist_regex %q: %w", expr, err)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format)
	}
	return nil
}
