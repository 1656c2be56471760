package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SYNTHARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SYNTHARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "SYNTHARB_DATABASE_DSN")
	setStr(&cfg.Database.Host, "SYNTHARB_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SYNTHARB_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SYNTHARB_DATABASE_NAME")
	setStr(&cfg.Database.User, "SYNTHARB_DATABASE_USER")
	setStr(&cfg.Database.Password, "SYNTHARB_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SYNTHARB_DATABASE_SSLMODE")
	setBool(&cfg.Database.RunMigrations, "SYNTHARB_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SYNTHARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SYNTHARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SYNTHARB_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "SYNTHARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SYNTHARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SYNTHARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SYNTHARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SYNTHARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SYNTHARB_S3_SECRET_KEY")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "SYNTHARB_FEED_WS_URL")

	// ── Detector / Risk ──
	setFloat(&cfg.Detector.ZThreshold, "SYNTHARB_DETECTOR_Z_THRESHOLD")
	setFloat(&cfg.Detector.MinCorrelation, "SYNTHARB_DETECTOR_MIN_CORRELATION")
	setFloat(&cfg.Risk.Bankroll, "SYNTHARB_RISK_BANKROLL")

	// ── Server ──
	setInt(&cfg.Server.Port, "SYNTHARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SYNTHARB_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SYNTHARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SYNTHARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SYNTHARB_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top level ──
	setStr(&cfg.Mode, "SYNTHARB_MODE")
	setStr(&cfg.LogLevel, "SYNTHARB_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
