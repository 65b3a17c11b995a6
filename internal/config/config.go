// Package config defines the top-level configuration for the auction house
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONHOUSE_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	NATS     NATSConfig     `toml:"nats"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the addresses bound to the auction engine at startup.
type EngineConfig struct {
	HouseAddress      string `toml:"house_address"`
	RecoveryAddress   string `toml:"recovery_address"`
	RoyaltyCollection string `toml:"royalty_collection"`
	WrappedAsset      string `toml:"wrapped_asset"`
	DirectTransferGas uint64 `toml:"direct_transfer_gas"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// NATSConfig holds JetStream publishing parameters.
type NATSConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Stream        string `toml:"stream"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// KeeperConfig holds the settlement sweeper parameters. In full mode the
// keeper settles in process under its key's address. In keeper mode it runs
// no engine and signs settle requests to the server at ServerURL.
type KeeperConfig struct {
	Enabled          bool     `toml:"enabled"`
	ServerURL        string   `toml:"server_url"`
	Interval         duration `toml:"interval"`
	LockTTL          duration `toml:"lock_ttl"`
	BatchSize        int      `toml:"batch_size"`
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
}

// ArchiveConfig holds event archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// ChainID is the EIP-712 domain chain id request signatures are bound to.
	ChainID int64 `toml:"chain_id"`
	// SignatureMaxAge bounds the age of a signed request.
	SignatureMaxAge duration `toml:"signature_max_age"`
	// RateLimit is the number of signed calls a caller may make per RateWindow.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// DevMode exposes the faucet, mint and approve endpoints.
	DevMode bool `toml:"dev_mode"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			HouseAddress:      "0x000000000000000000000000000000000000a0c7",
			WrappedAsset:      "0x000000000000000000000000000000000000e7e7",
			DirectTransferGas: 30_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctionhouse",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctionhouse-archive",
			ForcePathStyle: true,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Stream:        "AUCTION_EVENTS",
			SubjectPrefix: "auction.events",
		},
		Keeper: KeeperConfig{
			Enabled:   true,
			ServerURL: "http://localhost:8000",
			Interval:  duration{15 * time.Second},
			LockTTL:   duration{time.Minute},
			BatchSize: 50,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ChainID:         1,
			SignatureMaxAge: duration{5 * time.Minute},
			RateLimit:       30,
			RateWindow:      duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"auction_ended", "payment_fallback", "paused", "unpaused", "recovery_disabled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"keeper":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, keeper, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine addresses must parse and the identities must be distinct from
	// the zero address.
	for _, f := range []struct{ name, value string }{
		{"house_address", c.Engine.HouseAddress},
		{"recovery_address", c.Engine.RecoveryAddress},
		{"wrapped_asset", c.Engine.WrappedAsset},
	} {
		if !common.IsHexAddress(f.value) || common.HexToAddress(f.value) == (common.Address{}) {
			errs = append(errs, fmt.Sprintf("engine: %s must be a non-zero hex address, got %q", f.name, f.value))
		}
	}
	if c.Engine.RoyaltyCollection != "" && !common.IsHexAddress(c.Engine.RoyaltyCollection) {
		errs = append(errs, fmt.Sprintf("engine: royalty_collection must be a hex address, got %q", c.Engine.RoyaltyCollection))
	}
	if c.Engine.HouseAddress != "" && strings.EqualFold(c.Engine.HouseAddress, c.Engine.RecoveryAddress) {
		errs = append(errs, "engine: house_address and recovery_address must differ")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed by the archiver.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// NATS
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			errs = append(errs, "nats: url must not be empty when enabled")
		}
		if c.NATS.Stream == "" || c.NATS.SubjectPrefix == "" {
			errs = append(errs, "nats: stream and subject_prefix must be set when enabled")
		}
	}

	// Keeper needs an identity in the modes that run it.
	if c.Mode == "keeper" || (c.Keeper.Enabled && c.Mode == "full") {
		if c.Keeper.PrivateKey == "" && c.Keeper.EncryptedKeyPath == "" {
			errs = append(errs, "keeper: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Keeper.EncryptedKeyPath != "" && c.Keeper.KeyPassword == "" {
			errs = append(errs, "keeper: key_password is required when encrypted_key_path is set")
		}
		if c.Keeper.Interval.Duration <= 0 {
			errs = append(errs, "keeper: interval must be > 0")
		}
		if c.Keeper.BatchSize < 1 {
			errs = append(errs, "keeper: batch_size must be >= 1")
		}
	}
	if c.Mode == "keeper" {
		if u, err := url.Parse(c.Keeper.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("keeper: server_url must be an absolute URL in keeper mode, got %q", c.Keeper.ServerURL))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.ChainID <= 0 {
			errs = append(errs, "server: chain_id must be positive")
		}
		if c.Server.SignatureMaxAge.Duration <= 0 {
			errs = append(errs, "server: signature_max_age must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// KeeperInterval returns the keeper sweep interval.
func (c *Config) KeeperInterval() time.Duration { return c.Keeper.Interval.Duration }

// KeeperLockTTL returns the keeper leader-lock TTL.
func (c *Config) KeeperLockTTL() time.Duration { return c.Keeper.LockTTL.Duration }

// ArchiveInterval returns the archive run interval.
func (c *Config) ArchiveInterval() time.Duration { return c.Archive.Interval.Duration }

// SignatureMaxAge returns the accepted age of a signed request.
func (c *Config) SignatureMaxAge() time.Duration { return c.Server.SignatureMaxAge.Duration }

// RateWindow returns the per-caller rate-limit window.
func (c *Config) RateWindow() time.Duration { return c.Server.RateWindow.Duration }
