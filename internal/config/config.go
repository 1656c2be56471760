// Package config defines the top-level configuration for the synthetic
// arbitrage service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SYNTHARB_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Feed     FeedConfig     `toml:"feed"`
	Engine   EngineConfig   `toml:"engine"`
	Detector DetectorConfig `toml:"detector"`
	Risk     RiskConfig     `toml:"risk"`
	Refit    RefitConfig    `toml:"refit"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds the odds feed connection and pairing parameters.
type FeedConfig struct {
	WsURL string `toml:"ws_url"`
	// Pairs lists the market pairs the detector watches, e.g.
	// primary = "q1_spread", hedge = "full_spread".
	Pairs []MarketPair `toml:"pairs"`
	// StaleAfterSec drops a cached leg once it is older than this.
	StaleAfterSec int `toml:"stale_after_sec"`
}

// MarketPair names the two legs of a watched synthetic relationship.
type MarketPair struct {
	Primary string `toml:"primary"`
	Hedge   string `toml:"hedge"`
}

// EngineConfig holds covariance engine parameters.
type EngineConfig struct {
	MinSamples int `toml:"min_samples"`
	Capacity   int `toml:"capacity"`
}

// DetectorConfig holds detection thresholds.
type DetectorConfig struct {
	ZThreshold     float64 `toml:"z_threshold"`
	MinCorrelation float64 `toml:"min_correlation"`
	MinConfidence  float64 `toml:"min_confidence"`
	TailRiskCap    float64 `toml:"tail_risk_cap"`
	ReferenceStake float64 `toml:"reference_stake"`
}

// RiskConfig holds risk manager parameters.
type RiskConfig struct {
	Bankroll            float64 `toml:"bankroll"`
	MaxBankrollFraction float64 `toml:"max_bankroll_fraction"`
	MinCorrelation      float64 `toml:"min_correlation"`
	TailRiskCap         float64 `toml:"tail_risk_cap"`
	HedgeSizeBase       float64 `toml:"hedge_size_base"`
}

// RefitConfig holds the refit scheduler parameters.
type RefitConfig struct {
	IntervalSec int `toml:"interval_sec"`
	HalfLifeSec int `toml:"half_life_sec"`
}

// ArchiveConfig holds the opportunity archiver parameters.
type ArchiveConfig struct {
	Enabled      bool `toml:"enabled"`
	IntervalMin  int  `toml:"interval_min"`
	RetainHours  int  `toml:"retain_hours"`
	BatchLimit   int  `toml:"batch_limit"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config with sane development defaults.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "syntharb",
			User:         "syntharb",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Feed: FeedConfig{
			StaleAfterSec: 30,
			Pairs: []MarketPair{
				{Primary: "q1_spread", Hedge: "full_spread"},
			},
		},
		Engine: EngineConfig{
			MinSamples: 50,
			Capacity:   1000,
		},
		Detector: DetectorConfig{
			ZThreshold:     2.5,
			MinCorrelation: 0.75,
			MinConfidence:  0.7,
			TailRiskCap:    6,
			ReferenceStake: 10_000,
		},
		Risk: RiskConfig{
			Bankroll:            100_000,
			MaxBankrollFraction: 0.25,
			MinCorrelation:      0.8,
			TailRiskCap:         6,
			HedgeSizeBase:       50_000,
		},
		Refit: RefitConfig{
			IntervalSec: 60,
			HalfLifeSec: 1800,
		},
		Archive: ArchiveConfig{
			IntervalMin: 60,
			RetainHours: 24,
			BatchLimit:  500,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "detect",
		LogLevel: "info",
	}
}

// RefitInterval returns the refit cadence as a duration.
func (c RefitConfig) RefitInterval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// HalfLife returns the relationship half-life as a duration.
func (c RefitConfig) HalfLife() time.Duration {
	return time.Duration(c.HalfLifeSec) * time.Second
}

// StaleAfter returns the leg staleness window as a duration.
func (c FeedConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSec) * time.Second
}

// Validate checks the configuration for invalid combinations. It returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "detect", "refit", "monitor", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Engine.MinSamples < 2 {
		return fmt.Errorf("config: engine.min_samples must be >= 2, got %d", c.Engine.MinSamples)
	}
	if c.Engine.Capacity < c.Engine.MinSamples {
		return fmt.Errorf("config: engine.capacity %d below engine.min_samples %d",
			c.Engine.Capacity, c.Engine.MinSamples)
	}
	if c.Detector.ZThreshold <= 0 {
		return fmt.Errorf("config: detector.z_threshold must be positive")
	}
	if c.Detector.MinCorrelation <= 0 || c.Detector.MinCorrelation > 1 {
		return fmt.Errorf("config: detector.min_correlation must be in (0,1], got %v", c.Detector.MinCorrelation)
	}
	if c.Risk.MaxBankrollFraction <= 0 || c.Risk.MaxBankrollFraction > 1 {
		return fmt.Errorf("config: risk.max_bankroll_fraction must be in (0,1], got %v", c.Risk.MaxBankrollFraction)
	}
	if c.Refit.IntervalSec <= 0 {
		return fmt.Errorf("config: refit.interval_sec must be positive")
	}
	if len(c.Feed.Pairs) == 0 {
		return fmt.Errorf("config: feed.pairs must not be empty")
	}
	for i, p := range c.Feed.Pairs {
		if p.Primary == "" || p.Hedge == "" || p.Primary == p.Hedge {
			return fmt.Errorf("config: feed.pairs[%d] invalid: primary=%q hedge=%q", i, p.Primary, p.Hedge)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
}
