package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MINTBOOK_* environment variable overrides, and
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

// applyEnvOverrides reads well-known MINTBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// --- Exchange ---
	setStr(&cfg.Exchange.TreasuryUserID, "MINTBOOK_EXCHANGE_TREASURY_USER_ID")

	// --- Postgres ---
	setStr(&cfg.Postgres.DSN, "MINTBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MINTBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MINTBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MINTBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MINTBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MINTBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MINTBOOK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MINTBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MINTBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MINTBOOK_POSTGRES_RUN_MIGRATIONS")

	// --- Redis ---
	setStr(&cfg.Redis.Addr, "MINTBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MINTBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MINTBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MINTBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MINTBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MINTBOOK_REDIS_TLS_ENABLED")

	// --- S3 ---
	setBool(&cfg.S3.Enabled, "MINTBOOK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MINTBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MINTBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "MINTBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MINTBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MINTBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MINTBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MINTBOOK_S3_FORCE_PATH_STYLE")

	// --- Bot ---
	setBool(&cfg.Bot.Enabled, "MINTBOOK_BOT_ENABLED")
	setStr(&cfg.Bot.UserID, "MINTBOOK_BOT_USER_ID")
	setDuration(&cfg.Bot.Interval, "MINTBOOK_BOT_INTERVAL")
	setInt64(&cfg.Bot.SpreadCents, "MINTBOOK_BOT_SPREAD_CENTS")
	setInt64(&cfg.Bot.BaseSize, "MINTBOOK_BOT_BASE_SIZE")
	setInt64(&cfg.Bot.InventoryLimit, "MINTBOOK_BOT_INVENTORY_LIMIT")
	setInt64(&cfg.Bot.MinPriceCents, "MINTBOOK_BOT_MIN_PRICE_CENTS")
	setInt64(&cfg.Bot.MaxPriceCents, "MINTBOOK_BOT_MAX_PRICE_CENTS")

	// --- Server ---
	setBool(&cfg.Server.Enabled, "MINTBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MINTBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MINTBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MINTBOOK_SERVER_API_KEY")
	setInt(&cfg.Server.OrderRateLimit, "MINTBOOK_SERVER_ORDER_RATE_LIMIT")
	setDuration(&cfg.Server.OrderRateWindow, "MINTBOOK_SERVER_ORDER_RATE_WINDOW")

	// --- Notify ---
	setStr(&cfg.Notify.TelegramToken, "MINTBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MINTBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MINTBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MINTBOOK_NOTIFY_EVENTS")

	// --- Top-level ---
	setStr(&cfg.Mode, "MINTBOOK_MODE")
	setStr(&cfg.LogLevel, "MINTBOOK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
