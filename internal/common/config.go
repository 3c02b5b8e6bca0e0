// Package common provides shared utilities for dayk
package common

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for dayk
type Config struct {
	Environment string                  `toml:"environment"`
	Storage     StorageConfig           `toml:"storage"`
	Clients     ClientsConfig           `toml:"clients"`
	Fetch       FetchConfig             `toml:"fetch"`
	Cache       CacheConfig             `toml:"cache"`
	Markets     map[string]MarketConfig `toml:"markets" validate:"dive"`
	Logging     LoggingConfig           `toml:"logging"`
	Metrics     MetricsConfig           `toml:"metrics"`
}

// StorageConfig holds storage locations.
type StorageConfig struct {
	DataPath    string `toml:"data_path"`    // Artifacts, ledgers and catalog snapshots (file-based)
	HistoryPath string `toml:"history_path"` // Run history (BadgerHold)

	HistoryRetentionDays int `toml:"history_retention_days" validate:"min=0"` // 0 = keep every run
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// FetchConfig holds the worker pool, retry and backpressure policy.
type FetchConfig struct {
	Concurrency   int    `toml:"concurrency" validate:"min=1,max=5"`
	LookbackDays  int    `toml:"lookback_days" validate:"min=1"`
	MaxAttempts   int    `toml:"max_attempts" validate:"min=1"`
	Timeout       string `toml:"timeout"`
	PersistEvery  int    `toml:"persist_every" validate:"min=1"`
	ProgressEvery int    `toml:"progress_every" validate:"min=0"`
	EmptyRetryCap int    `toml:"empty_retry_cap" validate:"min=0"` // 0 = retry empty targets forever
	RefreshDone   bool   `toml:"refresh_done"`

	JitterMin string `toml:"jitter_min"`
	JitterMax string `toml:"jitter_max"`

	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`

	RateLimitBackoffMin string `toml:"rate_limit_backoff_min"`
	RateLimitBackoffMax string `toml:"rate_limit_backoff_max"`

	CooldownEvery int    `toml:"cooldown_every" validate:"min=0"` // 0 disables batch cooldown
	CooldownMin   string `toml:"cooldown_min"`
	CooldownMax   string `toml:"cooldown_max"`
}

// GetTimeout returns the per-attempt fetch timeout.
func (c *FetchConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 20*time.Second)
}

// GetLookback returns the history window requested per target.
func (c *FetchConfig) GetLookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// GetJitter returns the pre-fetch delay range.
func (c *FetchConfig) GetJitter() (time.Duration, time.Duration) {
	return parseDuration(c.JitterMin, 500*time.Millisecond), parseDuration(c.JitterMax, 1500*time.Millisecond)
}

// GetBackoff returns the initial and maximum transient retry backoff.
func (c *FetchConfig) GetBackoff() (time.Duration, time.Duration) {
	return parseDuration(c.BackoffInitial, 3*time.Second), parseDuration(c.BackoffMax, 30*time.Second)
}

// GetRateLimitBackoff returns the extended sleep range applied after a rate-limit signal.
func (c *FetchConfig) GetRateLimitBackoff() (time.Duration, time.Duration) {
	return parseDuration(c.RateLimitBackoffMin, 30*time.Second), parseDuration(c.RateLimitBackoffMax, 60*time.Second)
}

// GetCooldown returns the batch cooldown range.
func (c *FetchConfig) GetCooldown() (time.Duration, time.Duration) {
	return parseDuration(c.CooldownMin, 5*time.Second), parseDuration(c.CooldownMax, 10*time.Second)
}

// CacheConfig holds the artifact freshness thresholds.
type CacheConfig struct {
	MinBytes   int64 `toml:"min_bytes" validate:"min=0"`
	MaxAgeDays int   `toml:"max_age_days" validate:"min=0"` // 0 = artifact must be written today
}

// MarketConfig describes one market: where its listing comes from and how listings
// become fetchable targets.
type MarketConfig struct {
	Name        string   `toml:"name"`
	Exchanges   []string `toml:"exchanges" validate:"required,min=1"`
	MinTargets  int      `toml:"min_targets" validate:"min=0"`
	Concurrency int      `toml:"concurrency" validate:"min=0,max=5"` // 0 = fetch.concurrency
	Timezone    string   `toml:"timezone"`

	DefaultSuffix string            `toml:"default_suffix"`
	SuffixRules   map[string]string `toml:"suffix_rules"` // code prefix -> suffix
	VenueSuffix   bool              `toml:"venue_suffix"` // use "." + listing venue when no rule matches

	IncludePrefixes     []string          `toml:"include_prefixes"`
	ExcludeNameKeywords []string          `toml:"exclude_name_keywords"`
	IncludeTypes        []string          `toml:"include_types"`
	TruncateCode        int               `toml:"truncate_code" validate:"min=0"`
	NumericCodes        bool              `toml:"numeric_codes"`
	CodeReplacements    map[string]string `toml:"code_replacements"`

	SnapshotRetention int `toml:"snapshot_retention" validate:"min=0"`

	Secondary *ListingConfig `toml:"secondary"`
}

// Location returns the market's time zone, falling back to local time.
func (m *MarketConfig) Location() *time.Location {
	if m.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ListingConfig configures a generic JSON listing endpoint used as a secondary source.
type ListingConfig struct {
	URL        string   `toml:"url" validate:"required,url"`
	ItemsPath  string   `toml:"items_path"`  // gjson path to the array of rows; empty = document root
	CodeFields []string `toml:"code_fields"` // candidate field names, first match wins
	NameFields []string `toml:"name_fields"`
	TypeFields []string `toml:"type_fields"`
	RateLimit  int      `toml:"rate_limit"`
	Timeout    string   `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ListingConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 15*time.Second)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	Address string `toml:"address"` // empty disables the /metrics listener
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			DataPath:             "data",
			HistoryPath:          "data/history",
			HistoryRetentionDays: 90,
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Fetch: FetchConfig{
			Concurrency:         4,
			LookbackDays:        730,
			MaxAttempts:         3,
			Timeout:             "20s",
			PersistEvery:        100,
			ProgressEvery:       100,
			JitterMin:           "500ms",
			JitterMax:           "1500ms",
			BackoffInitial:      "3s",
			BackoffMax:          "30s",
			RateLimitBackoffMin: "30s",
			RateLimitBackoffMax: "60s",
			CooldownEvery:       100,
			CooldownMin:         "5s",
			CooldownMax:         "10s",
		},
		Cache: CacheConfig{
			MinBytes: 1000,
		},
		Markets: DefaultMarkets(),
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/dayk.log",
		},
	}
}

// DefaultMarkets returns the built-in US, JP and CN market presets.
func DefaultMarkets() map[string]MarketConfig {
	return map[string]MarketConfig{
		"us": {
			Name:          "US equities",
			Exchanges:     []string{"US"},
			MinTargets:    3000,
			Concurrency:   5,
			Timezone:      "America/New_York",
			DefaultSuffix: ".US",
			IncludeTypes:  []string{"Common Stock"},
			ExcludeNameKeywords: []string{
				"WARRANT", "RIGHTS", "UNIT", "PREFERRED", "DEPOSITARY", "ADR", "FOREIGN", "DEBENTURE",
			},
			CodeReplacements:  map[string]string{"$": "-"},
			SnapshotRetention: 7,
		},
		"jp": {
			Name:              "Tokyo Stock Exchange",
			Exchanges:         []string{"TSE"},
			MinTargets:        3800,
			Concurrency:       4,
			Timezone:          "Asia/Tokyo",
			DefaultSuffix:     ".TSE",
			TruncateCode:      4,
			NumericCodes:      true,
			SnapshotRetention: 7,
		},
		"cn": {
			Name:              "China A-shares",
			Exchanges:         []string{"SHG", "SHE"},
			MinTargets:        1000,
			Concurrency:       4,
			Timezone:          "Asia/Shanghai",
			DefaultSuffix:     ".SHE",
			SuffixRules:       map[string]string{"6": ".SHG"},
			IncludePrefixes:   []string{"00", "30", "60", "68"},
			NumericCodes:      true,
			SnapshotRetention: 7,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DAYK_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("DAYK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("DAYK_DATA_PATH"); path != "" {
		config.Storage.DataPath = path
		config.Storage.HistoryPath = path + "/history"
	}

	if v := os.Getenv("DAYK_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Fetch.Concurrency = n
		}
	}

	if v := os.Getenv("DAYK_METRICS_ADDR"); v != "" {
		config.Metrics.Address = v
	}

	for _, name := range []string{"EODHD_API_KEY", "DAYK_EODHD_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.EODHD.APIKey = v
			break
		}
	}
}

var configValidate = validator.New()

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Market returns the named market configuration.
func (c *Config) Market(name string) (MarketConfig, error) {
	m, ok := c.Markets[strings.ToLower(name)]
	if !ok {
		return MarketConfig{}, fmt.Errorf("unknown market '%s' (configured: %s)", name, strings.Join(c.MarketNames(), ", "))
	}
	return m, nil
}

// MarketNames returns the configured market identifiers in sorted order.
func (c *Config) MarketNames() []string {
	names := make([]string, 0, len(c.Markets))
	for name := range c.Markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConcurrencyFor returns the worker count for a market, capped by the global limit.
func (c *Config) ConcurrencyFor(m MarketConfig) int {
	n := c.Fetch.Concurrency
	if m.Concurrency > 0 && m.Concurrency < n {
		n = m.Concurrency
	}
	return n
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
