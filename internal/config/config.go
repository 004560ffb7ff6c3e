// Package config exposes strongly typed application configuration loaded
// from YAML. Filter thresholds are plain values handed to the filter chain at
// evaluation time, never ambient state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the full application configuration.
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Feed     FeedConfig     `yaml:"feed"`
	Filters  FilterConfig   `yaml:"filters"`
	Metadata MetadataConfig `yaml:"metadata"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BinanceConfig holds exchange connection settings. API keys are optional;
// all endpoints used are public.
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	WSBaseURL string `yaml:"ws_base_url"`
	Testnet   bool   `yaml:"testnet"`
}

// FeedConfig controls the upstream ticker stream.
type FeedConfig struct {
	ReconnectBaseMs int `yaml:"reconnect_base_ms"`
	ReconnectMaxMs  int `yaml:"reconnect_max_ms"`
	ReadTimeoutSecs int `yaml:"read_timeout_secs"`
	MaxStalenessMs  int `yaml:"max_staleness_ms"`
	SymbolTTLSecs   int `yaml:"symbol_ttl_secs"`
}

func (c FeedConfig) ReconnectBase() time.Duration { return time.Duration(c.ReconnectBaseMs) * time.Millisecond }
func (c FeedConfig) ReconnectMax() time.Duration { return time.Duration(c.ReconnectMaxMs) * time.Millisecond }
func (c FeedConfig) ReadTimeout() time.Duration { return time.Duration(c.ReadTimeoutSecs) * time.Second }
func (c FeedConfig) MaxStaleness() time.Duration { return time.Duration(c.MaxStalenessMs) * time.Millisecond }
func (c FeedConfig) SymbolTTL() time.Duration { return time.Duration(c.SymbolTTLSecs) * time.Second }

// FilterConfig holds the admission thresholds.
//
// A zero floor means "unset" and snaps to the default. To effectively disable
// a floor, set it negative: volumes, ratios, and listing ages are never
// negative, so a negative floor admits everything.
type FilterConfig struct {
	MinQuoteVolume24h    float64 `yaml:"min_quote_volume_24h"`
	MinLiveVolume        float64 `yaml:"min_live_volume"`
	LiveVolumeSource     string  `yaml:"live_volume_source"` // "window" or "quote24h"
	LiveVolumeWindowSecs int     `yaml:"live_volume_window_secs"`
	MinChange24h         float64 `yaml:"min_change_24h"`
	MinChange1h          float64 `yaml:"min_change_1h"`
	MinListingAgeDays    int     `yaml:"min_listing_age_days"`
	MinDepthRatio        float64 `yaml:"min_depth_ratio"`
	SortBy               string  `yaml:"sort_by"` // "quote_volume", "change_24h", "change_1h"
}

func (c FilterConfig) LiveVolumeWindow() time.Duration {
	return time.Duration(c.LiveVolumeWindowSecs) * time.Second
}

func (c FilterConfig) MinListingAge() time.Duration {
	return time.Duration(c.MinListingAgeDays) * 24 * time.Hour
}

// MetadataConfig controls depth and listing-age lookups.
type MetadataConfig struct {
	DepthLevels      int   `yaml:"depth_levels"`
	DepthTTLSecs     int   `yaml:"depth_ttl_secs"`
	FetchConcurrency int64 `yaml:"fetch_concurrency"`
}

func (c MetadataConfig) DepthTTL() time.Duration { return time.Duration(c.DepthTTLSecs) * time.Second }

// ServerConfig holds the viewer-facing HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	StaticDir      string `yaml:"static_dir"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	PongWaitSecs   int    `yaml:"pong_wait_secs"`
}

func (c ServerConfig) WriteTimeout() time.Duration { return time.Duration(c.WriteTimeoutMs) * time.Millisecond }
func (c ServerConfig) PongWait() time.Duration { return time.Duration(c.PongWaitSecs) * time.Second }

// StorageConfig holds the optional InfluxDB stats recorder settings.
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// KafkaConfig holds the optional snapshot sink settings.
type KafkaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	Topic     string `yaml:"topic"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration file and applies defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Binance.WSBaseURL == "" {
		c.Binance.WSBaseURL = "wss://stream.binance.com:9443"
	}

	if c.Feed.ReconnectBaseMs <= 0 {
		c.Feed.ReconnectBaseMs = 1000
	}
	if c.Feed.ReconnectMaxMs <= 0 {
		c.Feed.ReconnectMaxMs = 30_000
	}
	if c.Feed.ReadTimeoutSecs <= 0 {
		c.Feed.ReadTimeoutSecs = 30
	}
	if c.Feed.MaxStalenessMs <= 0 {
		c.Feed.MaxStalenessMs = 120_000
	}
	if c.Feed.SymbolTTLSecs <= 0 {
		c.Feed.SymbolTTLSecs = 600
	}

	if c.Filters.MinQuoteVolume24h == 0 {
		c.Filters.MinQuoteVolume24h = 1_000_000
	}
	if c.Filters.MinLiveVolume == 0 {
		c.Filters.MinLiveVolume = 10_000
	}
	if c.Filters.LiveVolumeSource == "" {
		c.Filters.LiveVolumeSource = "window"
	}
	if c.Filters.LiveVolumeWindowSecs <= 0 {
		c.Filters.LiveVolumeWindowSecs = 300
	}
	if c.Filters.MinChange24h == 0 {
		c.Filters.MinChange24h = 5
	}
	if c.Filters.MinChange1h == 0 {
		c.Filters.MinChange1h = 1
	}
	if c.Filters.MinListingAgeDays <= 0 {
		c.Filters.MinListingAgeDays = 30
	}
	if c.Filters.MinDepthRatio == 0 {
		c.Filters.MinDepthRatio = 0.05
	}
	if c.Filters.SortBy == "" {
		c.Filters.SortBy = "quote_volume"
	}

	if c.Metadata.DepthLevels <= 0 {
		c.Metadata.DepthLevels = 20
	}
	if c.Metadata.DepthTTLSecs <= 0 {
		c.Metadata.DepthTTLSecs = 60
	}
	if c.Metadata.FetchConcurrency <= 0 {
		c.Metadata.FetchConcurrency = 4
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "static"
	}
	if c.Server.WriteTimeoutMs <= 0 {
		c.Server.WriteTimeoutMs = 5000
	}
	if c.Server.PongWaitSecs <= 0 {
		c.Server.PongWaitSecs = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Filters.SortBy {
	case "quote_volume", "change_24h", "change_1h":
	default:
		return fmt.Errorf("unknown sort_by %q", c.Filters.SortBy)
	}
	switch c.Filters.LiveVolumeSource {
	case "window", "quote24h":
	default:
		return fmt.Errorf("unknown live_volume_source %q", c.Filters.LiveVolumeSource)
	}
	if c.Storage.Enabled && c.Storage.URL == "" {
		return fmt.Errorf("storage enabled but url is empty")
	}
	if c.Kafka.Enabled && (c.Kafka.BrokerURL == "" || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka enabled but broker_url or topic is empty")
	}
	return nil
}
