package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zatekoja/pharmacyclaims/pkg/secrets"
)

// Benefit-year modes accepted by BENEFIT_YEAR_MODE
const (
	BenefitYearCalendar = "calendar"
	BenefitYearRolling  = "rolling"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OTEL      OTELConfig
	Claims    ClaimsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// ClaimsConfig holds adjudication settings
type ClaimsConfig struct {
	BenefitYearMode     string
	PlanCacheTTLSeconds int
}

// Load loads configuration from the environment and an optional .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "production")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "pharmacy_claims")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TYPESENSE_URL", "http://localhost:8108")
	v.SetDefault("TYPESENSE_API_KEY", "xyz")
	v.SetDefault("OTEL_SERVICE_NAME", "pharmacy-claims")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("BENEFIT_YEAR_MODE", BenefitYearCalendar)
	v.SetDefault("PLAN_CACHE_TTL_SECONDS", 300)
	v.SetDefault("VAULT_ENABLED", false)
	v.SetDefault("VAULT_MOUNT", "secret")
	v.SetDefault("VAULT_KV_VERSION", 2)
	v.SetDefault("VAULT_TIMEOUT", "5s")

	// A missing .env file is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	if v.GetBool("VAULT_ENABLED") {
		if err := applyVaultSecrets(v); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Env: v.GetString("ENV"),
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Database:     v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Typesense: TypesenseConfig{
			URL:    v.GetString("TYPESENSE_URL"),
			APIKey: v.GetString("TYPESENSE_API_KEY"),
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
		Claims: ClaimsConfig{
			BenefitYearMode:     strings.ToLower(strings.TrimSpace(v.GetString("BENEFIT_YEAR_MODE"))),
			PlanCacheTTLSeconds: v.GetInt("PLAN_CACHE_TTL_SECONDS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyVaultSecrets layers a Vault KV secret over the defaults and the .env file. Values
// already present in the process environment win unless VAULT_OVERWRITE is set.
func applyVaultSecrets(v *viper.Viper) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	values, err := secrets.Fetch(ctx, secrets.VaultConfig{
		Addr:      v.GetString("VAULT_ADDR"),
		Token:     v.GetString("VAULT_TOKEN"),
		Namespace: v.GetString("VAULT_NAMESPACE"),
		Mount:     v.GetString("VAULT_MOUNT"),
		Path:      v.GetString("VAULT_PATH"),
		KVVersion: v.GetInt("VAULT_KV_VERSION"),
		Timeout:   v.GetDuration("VAULT_TIMEOUT"),
	})
	if err != nil {
		return fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	overwrite := v.GetBool("VAULT_OVERWRITE")
	for key, value := range values {
		if _, inEnv := os.LookupEnv(key); inEnv && !overwrite {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

// Validate checks settings that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Claims.BenefitYearMode {
	case BenefitYearCalendar, BenefitYearRolling:
	default:
		return fmt.Errorf("BENEFIT_YEAR_MODE must be %q or %q, got %q",
			BenefitYearCalendar, BenefitYearRolling, c.Claims.BenefitYearMode)
	}
	if c.Claims.PlanCacheTTLSeconds < 0 {
		return fmt.Errorf("PLAN_CACHE_TTL_SECONDS must not be negative")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be positive, got %d", c.Server.Port)
	}
	return nil
}

// IsDev reports whether the service runs in development mode
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
