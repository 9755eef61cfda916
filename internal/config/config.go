package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	QueryTimeoutMs int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	OpTimeoutMs     int
	BlocklistPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret                string
	AccessTokenTTLMinutes    int
	RefreshTokenTTLDays      int
	RevocationTTLMinutes     int
	RefreshRevocationTTLDays int
	RevocationFailOpen       bool
	RefreshResolvesIdentity  bool
	BcryptCost               int
	ReadRoles                []string
	WriteRoles               []string
}

// RateLimitConfig bounds unauthenticated credential endpoints per client.
type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	accessTTL := getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60)
	refreshTTL := getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_DAYS", 7)

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-gate"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			QueryTimeoutMs: getEnvAsInt("POSTGRES_QUERY_TIMEOUT_MS", 2000),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			OpTimeoutMs:     getEnvAsInt("REDIS_OP_TIMEOUT_MS", 500),
			BlocklistPrefix: getEnv("REDIS_BLOCKLIST_PREFIX", "blocklist:jti:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                getEnv("AUTH_JWT_SECRET", devSecret),
			AccessTokenTTLMinutes:    accessTTL,
			RefreshTokenTTLDays:      refreshTTL,
			RevocationTTLMinutes:     getEnvAsInt("AUTH_REVOCATION_TTL_MINUTES", accessTTL),
			RefreshRevocationTTLDays: getEnvAsInt("AUTH_REFRESH_REVOCATION_TTL_DAYS", refreshTTL),
			RevocationFailOpen:       getEnvAsBool("AUTH_REVOCATION_FAIL_OPEN", false),
			RefreshResolvesIdentity:  getEnvAsBool("AUTH_REFRESH_RESOLVE_IDENTITY", false),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 12),
			ReadRoles:                getEnvAsList("AUTH_READ_ROLES", "admin,user"),
			WriteRoles:               getEnvAsList("AUTH_WRITE_ROLES", "admin,user"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations under which a revoked credential could become valid again
// or the signing key is unsafe.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == devSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.RefreshTokenTTLDays <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_TTL_DAYS must be positive"))
	}
	if c.Auth.RevocationTTL() < c.Auth.AccessTokenTTL() {
		errs = append(errs, fmt.Errorf("AUTH_REVOCATION_TTL_MINUTES (%d) must be >= AUTH_ACCESS_TOKEN_TTL_MINUTES (%d)",
			c.Auth.RevocationTTLMinutes, c.Auth.AccessTokenTTLMinutes))
	}
	if c.Auth.RefreshRevocationTTL() < c.Auth.RefreshTokenTTL() {
		errs = append(errs, fmt.Errorf("AUTH_REFRESH_REVOCATION_TTL_DAYS (%d) must be >= AUTH_REFRESH_TOKEN_TTL_DAYS (%d)",
			c.Auth.RefreshRevocationTTLDays, c.Auth.RefreshTokenTTLDays))
	}
	if len(c.Auth.ReadRoles) == 0 {
		errs = append(errs, errors.New("AUTH_READ_ROLES must list at least one role"))
	}
	if len(c.Auth.WriteRoles) == 0 {
		errs = append(errs, errors.New("AUTH_WRITE_ROLES must list at least one role"))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// QueryTimeout bounds a single identity lookup.
func (p PostgresConfig) QueryTimeout() time.Duration {
	return time.Duration(p.QueryTimeoutMs) * time.Millisecond
}

// OpTimeout bounds a single blocklist round trip.
func (r RedisConfig) OpTimeout() time.Duration {
	return time.Duration(r.OpTimeoutMs) * time.Millisecond
}

// AccessTokenTTL is the lifetime of an access credential.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL is the lifetime of a refresh credential.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

// RevocationTTL is how long an access revocation marker lives.
func (a AuthConfig) RevocationTTL() time.Duration {
	return time.Duration(a.RevocationTTLMinutes) * time.Minute
}

// RefreshRevocationTTL is how long a refresh revocation marker lives.
func (a AuthConfig) RefreshRevocationTTL() time.Duration {
	return time.Duration(a.RefreshRevocationTTLDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
