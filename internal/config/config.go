// Package config defines the engine configuration and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by ARBSCOPE_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Feed     FeedConfig     `toml:"feed"`
	Engine   EngineConfig   `toml:"engine"`
	Volume   VolumeConfig   `toml:"volume"`
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

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetainDays     int    `toml:"retain_days"`
}

// FeedConfig holds the ingestion stream endpoint.
type FeedConfig struct {
	WsURL string `toml:"ws_url"`
}

// EngineConfig holds detection and persistence-tracking parameters.
type EngineConfig struct {
	StaleTimeoutMinutes int `toml:"stale_timeout_minutes"`
	Parallelism         int `toml:"parallelism"`

	// Classification cutoffs. Defaults are behavioral contract with
	// existing data; change with care.
	MinGrossSpread         float64 `toml:"min_gross_spread"`
	MinNetSpread           float64 `toml:"min_net_spread"`
	ThinMinDeployUSD       float64 `toml:"thin_min_deploy_usd"`
	ExecutableMinDeployUSD float64 `toml:"executable_min_deploy_usd"`
}

// StaleTimeout returns the reaper window as a duration.
func (e EngineConfig) StaleTimeout() time.Duration {
	return time.Duration(e.StaleTimeoutMinutes) * time.Minute
}

// VolumeConfig holds spike detection parameters.
type VolumeConfig struct {
	SpikeMultiplier float64 `toml:"spike_multiplier"`
	MinVolumeUSD    float64 `toml:"min_volume_usd"`
	WindowBuckets   int     `toml:"window_buckets"`
	RetainDays      int     `toml:"retain_days"`
}

// NotifyConfig holds alerting channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// Defaults returns the built-in configuration, matching the engine's
// documented production thresholds.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscope",
			User:          "arbscope",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		S3: S3Config{
			Region:     "us-east-1",
			RetainDays: 30,
		},
		Feed: FeedConfig{
			WsURL: "ws://localhost:8090/stream",
		},
		Engine: EngineConfig{
			StaleTimeoutMinutes:    10,
			Parallelism:            8,
			MinGrossSpread:         0.005,
			MinNetSpread:           0.02,
			ThinMinDeployUSD:       100,
			ExecutableMinDeployUSD: 1000,
		},
		Volume: VolumeConfig{
			SpikeMultiplier: 2.0,
			MinVolumeUSD:    500,
			WindowBuckets:   24,
			RetainDays:      7,
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

// Validate checks the configuration for a usable combination of fields.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "engine", "archive":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "") {
		return fmt.Errorf("config: database requires dsn or host/database/user")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis addr is required")
	}
	if c.Mode == "engine" && c.Feed.WsURL == "" {
		return fmt.Errorf("config: feed ws_url is required in engine mode")
	}
	if c.S3.Enabled && (c.S3.Bucket == "" || c.S3.Region == "") {
		return fmt.Errorf("config: s3 requires bucket and region when enabled")
	}

	if c.Engine.StaleTimeoutMinutes <= 0 {
		return fmt.Errorf("config: stale_timeout_minutes must be positive")
	}
	if c.Engine.MinNetSpread < 0 || c.Engine.MinGrossSpread < 0 {
		return fmt.Errorf("config: spread thresholds must be non-negative")
	}
	if c.Engine.ThinMinDeployUSD > c.Engine.ExecutableMinDeployUSD {
		return fmt.Errorf("config: thin_min_deploy_usd must not exceed executable_min_deploy_usd")
	}
	if c.Volume.SpikeMultiplier <= 1 {
		return fmt.Errorf("config: spike_multiplier must exceed 1")
	}
	return nil
}
