package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, uint64(1), cfg.Exchange.PriceScale)
	require.Equal(t, 100, cfg.Exchange.BookCapacity)
	require.Equal(t, "admin", cfg.Exchange.Authority)
	require.Equal(t, 8080, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[exchange]
price_scale = 100
authority = "oracle"

[server]
port = 9000
cors_origins = ["https://app.example.com"]

[postgres]
enabled = true
host = "db.internal"
`), 0o600))

	t.Setenv("GRIDIRON_SERVER_PORT", "9100")
	t.Setenv("GRIDIRON_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("GRIDIRON_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	// File over defaults.
	require.Equal(t, uint64(100), cfg.Exchange.PriceScale)
	require.Equal(t, "oracle", cfg.Exchange.Authority)
	require.True(t, cfg.Postgres.Enabled)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, "debug", cfg.LogLevel)

	// Env over file.
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "hunter2", cfg.Postgres.Password)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero price scale", func(c *Config) { c.Exchange.PriceScale = 0 }},
		{"zero book capacity", func(c *Config) { c.Exchange.BookCapacity = 0 }},
		{"blank authority", func(c *Config) { c.Exchange.Authority = "  " }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"postgres without target", func(c *Config) { c.Postgres.Enabled = true }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"s3 without bucket", func(c *Config) { c.S3.Enabled = true }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"

	red := cfg.Redacted()
	require.NotContains(t, red.Postgres.Password, "pg-secret")
	require.NotContains(t, red.Redis.Password, "redis-secret")
	require.NotContains(t, red.S3.SecretKey, "s3-secret")
	require.NotContains(t, red.Server.APIKey, "api-secret")

	// Original untouched.
	require.Equal(t, "pg-secret", cfg.Postgres.Password)
}
