package config

const redacted = "***REDACTED***"

// Redacted returns a deep copy of the config with every secret-bearing field
// replaced by a placeholder. Safe to log at startup.
func (c *Config) Redacted() Config {
	out := *c

	if out.Postgres.DSN != "" {
		out.Postgres.DSN = redacted
	}
	if out.Postgres.Password != "" {
		out.Postgres.Password = redacted
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if out.S3.AccessKey != "" {
		out.S3.AccessKey = redacted
	}
	if out.S3.SecretKey != "" {
		out.S3.SecretKey = redacted
	}
	if out.Server.APIKey != "" {
		out.Server.APIKey = redacted
	}

	// Copy slices so the redacted view cannot alias the live config.
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)

	return out
}
