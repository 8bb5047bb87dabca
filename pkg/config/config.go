// Package config loads service configuration from config.yaml with
// environment variable overrides. Secrets (database password, JWT secret)
// come from the environment only.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for datahub.
// Environment variables always override YAML values.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"5000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	OTP      OTPConfig      `yaml:"otp"`
}

// AuthConfig holds bearer-token resolution settings.
// Token issuance happens in the external auth system; this service only
// validates tokens signed with the shared secret.
type AuthConfig struct {
	// JWTSecret is the HS256 signing secret shared with the token issuer.
	JWTSecret string `yaml:"-" env:"JWT_SECRET_KEY"` // Secret - not in YAML

	// AccessTokenTTLMinutes bounds how old an accepted token may claim to be.
	AccessTokenTTLMinutes int `yaml:"access_token_ttl_minutes" env:"JWT_ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DB_USER" env-default:"datahub"`
	Password       string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"DB_NAME" env-default:"datahub"`
	SSLMode        string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"DB_MIGRATIONS_PATH" env-default:"migrations"`
}

// OTPConfig holds one-time-code settings.
type OTPConfig struct {
	// TTLMinutes is how long a generated verification code stays redeemable.
	TTLMinutes int `yaml:"ttl_minutes" env:"OTP_TTL_MINUTES" env-default:"10"`
}

// Load reads configuration from config.yaml with environment overrides.
// When config.yaml is absent the environment alone is used, which keeps
// containerized deployments and tests free of file dependencies.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be set")
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection URL. The password is
// URL-escaped so special characters survive.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
