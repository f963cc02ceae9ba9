package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GRIDIRON_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known GRIDIRON_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setUint64(&cfg.Exchange.PriceScale, "GRIDIRON_EXCHANGE_PRICE_SCALE")
	setInt(&cfg.Exchange.BookCapacity, "GRIDIRON_EXCHANGE_BOOK_CAPACITY")
	setStr(&cfg.Exchange.Authority, "GRIDIRON_EXCHANGE_AUTHORITY")
	setBool(&cfg.Exchange.DevFaucet, "GRIDIRON_EXCHANGE_DEV_FAUCET")
	setInt(&cfg.Exchange.LockTTLSeconds, "GRIDIRON_EXCHANGE_LOCK_TTL_SECONDS")
	setInt(&cfg.Exchange.SnapshotTTLSeconds, "GRIDIRON_EXCHANGE_SNAPSHOT_TTL_SECONDS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "GRIDIRON_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "GRIDIRON_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GRIDIRON_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GRIDIRON_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GRIDIRON_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GRIDIRON_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GRIDIRON_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GRIDIRON_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GRIDIRON_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GRIDIRON_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GRIDIRON_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GRIDIRON_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "GRIDIRON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GRIDIRON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GRIDIRON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GRIDIRON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GRIDIRON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GRIDIRON_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "GRIDIRON_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "GRIDIRON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GRIDIRON_S3_REGION")
	setStr(&cfg.S3.Bucket, "GRIDIRON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GRIDIRON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GRIDIRON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GRIDIRON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GRIDIRON_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "GRIDIRON_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "GRIDIRON_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerSec, "GRIDIRON_SERVER_RATE_LIMIT_PER_SEC")
	setStringSlice(&cfg.Server.CORSOrigins, "GRIDIRON_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GRIDIRON_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
