// Package config defines the top-level configuration for the gridiron
// exchange service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by GRIDIRON_* environment
// variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds core engine parameters.
type ExchangeConfig struct {
	// PriceScale is the fixed-point denominator for order prices. A nominal
	// price p is stored as p * PriceScale.
	PriceScale uint64 `toml:"price_scale"`

	// BookCapacity bounds the resident orders per market book.
	BookCapacity int `toml:"book_capacity"`

	// Authority is the principal allowed to create and resolve markets
	// through the API.
	Authority string `toml:"authority"`

	// DevFaucet enables the account-funding endpoint for local development
	// and demos. Never enable in production.
	DevFaucet bool `toml:"dev_faucet"`

	// LockTTLSeconds is the per-market distributed lock TTL.
	LockTTLSeconds int `toml:"lock_ttl_seconds"`

	// SnapshotTTLSeconds is how long cached book snapshots stay valid.
	SnapshotTTLSeconds int `toml:"snapshot_ttl_seconds"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP API server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimitPerSec int      `toml:"rate_limit_per_sec"`
}

// Defaults returns a Config populated with sensible defaults. Values from
// the TOML file and environment overrides are layered on top.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			PriceScale:         1,
			BookCapacity:       100,
			Authority:          "admin",
			LockTTLSeconds:     10,
			SnapshotTTLSeconds: 5,
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimitPerSec: 20,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for internally inconsistent or missing
// values. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Exchange.PriceScale == 0 {
		return fmt.Errorf("config: exchange.price_scale must be positive")
	}
	if c.Exchange.BookCapacity <= 0 {
		return fmt.Errorf("config: exchange.book_capacity must be positive")
	}
	if strings.TrimSpace(c.Exchange.Authority) == "" {
		return fmt.Errorf("config: exchange.authority is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" && strings.TrimSpace(c.Postgres.Host) == "" {
			return fmt.Errorf("config: postgres enabled but neither dsn nor host set")
		}
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("config: redis enabled but addr not set")
	}
	if c.S3.Enabled {
		if strings.TrimSpace(c.S3.Bucket) == "" {
			return fmt.Errorf("config: s3 enabled but bucket not set")
		}
		if strings.TrimSpace(c.S3.Region) == "" {
			return fmt.Errorf("config: s3 enabled but region not set")
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
