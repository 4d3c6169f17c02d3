// Package config loads the dexcache configuration from YAML with
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/IvanBrykalov/dexcache/model"
	"gopkg.in/yaml.v3"
)

// APIConfig holds remote API and fetch client configuration
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst          int           `yaml:"burst"`
	UserAgent      string        `yaml:"user_agent"`
	TTLs           TTLConfig     `yaml:"ttls"`
}

// TTLConfig holds per-resource cache lifetimes
type TTLConfig struct {
	Record     time.Duration `yaml:"record"`
	Species    time.Duration `yaml:"species"`
	Evolution  time.Duration `yaml:"evolution"`
	Categories time.Duration `yaml:"categories"`
	Group      time.Duration `yaml:"group"`
}

// CacheConfig holds TTL cache configuration
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	Namespace     string        `yaml:"namespace"`
	EvictFraction float64       `yaml:"evict_fraction"`
	Policy        string        `yaml:"policy"` // leastused | lru
}

// Store kinds.
const (
	StoreNone   = "none"
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// StoreConfig selects the persistent tier
type StoreConfig struct {
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`  // directory for file, DSN for sqlite
	Quota int64  `yaml:"quota"` // bytes, 0 = unlimited
}

// LoaderConfig holds dataset loader configuration
type LoaderConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchPause time.Duration `yaml:"batch_pause"`
	Range      model.IDRange `yaml:"range"` // zero = span of all groups
}

// BrowserConfig holds session configuration
type BrowserConfig struct {
	PageSize int `yaml:"page_size"`
}

// MetricsConfig holds Prometheus exporter configuration
type MetricsConfig struct {
	Addr      string `yaml:"addr"` // empty = disabled
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  LogLevel `yaml:"level"`
	Format string   `yaml:"format"` // json | console
}

// Config represents the complete dexcache configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Loader  LoaderConfig  `yaml:"loader"`
	Browser BrowserConfig `yaml:"browser"`
	Groups  model.Groups  `yaml:"groups"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// LoadConfig reads the YAML file at filePath (optional: "" means defaults
// only), applies DEXCACHE_* environment overrides, fills in defaults for
// whatever is still unset and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	var cfg Config
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// decode rejects unknown keys so typos do not silently fall back to defaults.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://pokeapi.co/api/v2"
	}
	if cfg.API.MaxAttempts == 0 {
		cfg.API.MaxAttempts = 3
	}
	if cfg.API.BaseDelay == 0 {
		cfg.API.BaseDelay = time.Second
	}
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = 10 * time.Second
	}
	if cfg.API.RateLimit > 0 && cfg.API.Burst == 0 {
		cfg.API.Burst = 1
	}
	if cfg.API.TTLs.Record == 0 {
		cfg.API.TTLs.Record = 30 * time.Minute
	}
	if cfg.API.TTLs.Species == 0 {
		cfg.API.TTLs.Species = time.Hour
	}
	if cfg.API.TTLs.Evolution == 0 {
		cfg.API.TTLs.Evolution = time.Hour
	}
	if cfg.API.TTLs.Categories == 0 {
		cfg.API.TTLs.Categories = 24 * time.Hour
	}
	if cfg.API.TTLs.Group == 0 {
		cfg.API.TTLs.Group = 24 * time.Hour
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 500
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 5 * time.Minute
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "dexcache"
	}
	if cfg.Cache.EvictFraction == 0 {
		cfg.Cache.EvictFraction = 0.2
	}
	if cfg.Cache.Policy == "" {
		cfg.Cache.Policy = "leastused"
	}

	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreNone
	}

	if len(cfg.Groups) == 0 {
		cfg.Groups = model.DefaultGroups()
	}
	if cfg.Loader.BatchSize == 0 {
		cfg.Loader.BatchSize = 50
	}
	if cfg.Loader.BatchPause == 0 {
		cfg.Loader.BatchPause = 100 * time.Millisecond
	}
	if cfg.Loader.Range == (model.IDRange{}) {
		cfg.Loader.Range = cfg.Groups.Span()
	}

	if cfg.Browser.PageSize == 0 {
		cfg.Browser.PageSize = 20
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "dexcache"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1")
	}
	if c.API.BaseDelay < 0 || c.API.RequestTimeout < 0 {
		return fmt.Errorf("api.base_delay and api.request_timeout must not be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be at least 1")
	}
	if c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1 {
		return fmt.Errorf("cache.evict_fraction must be in (0, 1]")
	}
	switch c.Cache.Policy {
	case "leastused", "lru":
	default:
		return fmt.Errorf("cache.policy must be leastused or lru, got %q", c.Cache.Policy)
	}
	switch c.Store.Kind {
	case StoreNone, StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for store.kind %q", c.Store.Kind)
		}
	default:
		return fmt.Errorf("store.kind must be one of none, memory, file, sqlite, got %q", c.Store.Kind)
	}
	if c.Store.Quota < 0 {
		return fmt.Errorf("store.quota must not be negative")
	}
	if err := c.Groups.Validate(); err != nil {
		return fmt.Errorf("groups: %w", err)
	}
	if c.Loader.BatchSize < 1 {
		return fmt.Errorf("loader.batch_size must be at least 1")
	}
	if err := c.Loader.Range.Validate(); err != nil {
		return fmt.Errorf("loader.range: %w", err)
	}
	if c.Browser.PageSize < 1 {
		return fmt.Errorf("browser.page_size must be at least 1")
	}
	if _, err := c.Logging.Level.Parse(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
