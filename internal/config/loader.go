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
// built-in defaults, applies AUCTIONHOUSE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. An empty path skips
// the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AUCTIONHOUSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.HouseAddress, "AUCTIONHOUSE_ENGINE_HOUSE_ADDRESS")
	setStr(&cfg.Engine.RecoveryAddress, "AUCTIONHOUSE_ENGINE_RECOVERY_ADDRESS")
	setStr(&cfg.Engine.RoyaltyCollection, "AUCTIONHOUSE_ENGINE_ROYALTY_COLLECTION")
	setStr(&cfg.Engine.WrappedAsset, "AUCTIONHOUSE_ENGINE_WRAPPED_ASSET")
	setUint64(&cfg.Engine.DirectTransferGas, "AUCTIONHOUSE_ENGINE_DIRECT_TRANSFER_GAS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AUCTIONHOUSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "AUCTIONHOUSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONHOUSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONHOUSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONHOUSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONHOUSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONHOUSE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTIONHOUSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTIONHOUSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONHOUSE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUCTIONHOUSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONHOUSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONHOUSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONHOUSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONHOUSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONHOUSE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AUCTIONHOUSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIONHOUSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIONHOUSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUCTIONHOUSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIONHOUSE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIONHOUSE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIONHOUSE_S3_FORCE_PATH_STYLE")

	// ── NATS ──
	setBool(&cfg.NATS.Enabled, "AUCTIONHOUSE_NATS_ENABLED")
	setStr(&cfg.NATS.URL, "AUCTIONHOUSE_NATS_URL")
	setStr(&cfg.NATS.Stream, "AUCTIONHOUSE_NATS_STREAM")
	setStr(&cfg.NATS.SubjectPrefix, "AUCTIONHOUSE_NATS_SUBJECT_PREFIX")

	// ── Keeper ──
	setBool(&cfg.Keeper.Enabled, "AUCTIONHOUSE_KEEPER_ENABLED")
	setStr(&cfg.Keeper.ServerURL, "AUCTIONHOUSE_KEEPER_SERVER_URL")
	setDuration(&cfg.Keeper.Interval, "AUCTIONHOUSE_KEEPER_INTERVAL")
	setDuration(&cfg.Keeper.LockTTL, "AUCTIONHOUSE_KEEPER_LOCK_TTL")
	setInt(&cfg.Keeper.BatchSize, "AUCTIONHOUSE_KEEPER_BATCH_SIZE")
	setStr(&cfg.Keeper.PrivateKey, "AUCTIONHOUSE_KEEPER_PRIVATE_KEY")
	setStr(&cfg.Keeper.EncryptedKeyPath, "AUCTIONHOUSE_KEEPER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Keeper.KeyPassword, "AUCTIONHOUSE_KEEPER_KEY_PASSWORD")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AUCTIONHOUSE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "AUCTIONHOUSE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "AUCTIONHOUSE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AUCTIONHOUSE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AUCTIONHOUSE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONHOUSE_SERVER_CORS_ORIGINS")
	setInt64(&cfg.Server.ChainID, "AUCTIONHOUSE_SERVER_CHAIN_ID")
	setDuration(&cfg.Server.SignatureMaxAge, "AUCTIONHOUSE_SERVER_SIGNATURE_MAX_AGE")
	setInt(&cfg.Server.RateLimit, "AUCTIONHOUSE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "AUCTIONHOUSE_SERVER_RATE_WINDOW")
	setBool(&cfg.Server.DevMode, "AUCTIONHOUSE_SERVER_DEV_MODE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIONHOUSE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONHOUSE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIONHOUSE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIONHOUSE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONHOUSE_MODE")
	setStr(&cfg.LogLevel, "AUCTIONHOUSE_LOG_LEVEL")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
