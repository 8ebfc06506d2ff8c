package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the built-in defaults, applies
// ARBSCOPE_* environment overrides, and returns the merged Config. The
// result is not yet validated; call Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Pick up a .env file when present; silently skip otherwise.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites config fields from well-known ARBSCOPE_*
// variables, letting operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Database.DSN, "ARBSCOPE_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ARBSCOPE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBSCOPE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBSCOPE_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARBSCOPE_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBSCOPE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBSCOPE_DATABASE_SSLMODE")
	setBool(&cfg.Database.RunMigrations, "ARBSCOPE_DATABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "ARBSCOPE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCOPE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCOPE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCOPE_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "ARBSCOPE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSCOPE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCOPE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCOPE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCOPE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCOPE_S3_SECRET_KEY")

	setStr(&cfg.Feed.WsURL, "ARBSCOPE_FEED_WS_URL")

	setInt(&cfg.Engine.StaleTimeoutMinutes, "ARBSCOPE_ENGINE_STALE_TIMEOUT_MINUTES")
	setInt(&cfg.Engine.Parallelism, "ARBSCOPE_ENGINE_PARALLELISM")
	setFloat(&cfg.Engine.MinGrossSpread, "ARBSCOPE_ENGINE_MIN_GROSS_SPREAD")
	setFloat(&cfg.Engine.MinNetSpread, "ARBSCOPE_ENGINE_MIN_NET_SPREAD")
	setFloat(&cfg.Engine.ThinMinDeployUSD, "ARBSCOPE_ENGINE_THIN_MIN_DEPLOY_USD")
	setFloat(&cfg.Engine.ExecutableMinDeployUSD, "ARBSCOPE_ENGINE_EXECUTABLE_MIN_DEPLOY_USD")

	setFloat(&cfg.Volume.SpikeMultiplier, "ARBSCOPE_VOLUME_SPIKE_MULTIPLIER")
	setFloat(&cfg.Volume.MinVolumeUSD, "ARBSCOPE_VOLUME_MIN_VOLUME_USD")
	setInt(&cfg.Volume.WindowBuckets, "ARBSCOPE_VOLUME_WINDOW_BUCKETS")

	setStr(&cfg.Notify.TelegramToken, "ARBSCOPE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCOPE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "ARBSCOPE_NOTIFY_DISCORD_WEBHOOK")
	if v := os.Getenv("ARBSCOPE_NOTIFY_EVENTS"); v != "" {
		cfg.Notify.Events = splitCSV(v)
	}

	setStr(&cfg.Mode, "ARBSCOPE_MODE")
	setStr(&cfg.LogLevel, "ARBSCOPE_LOG_LEVEL")
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

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
