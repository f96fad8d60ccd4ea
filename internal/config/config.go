// Package config loads application configuration from environment
// variables with sane defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Auth       AuthConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Scanner    ScannerConfig
	Enrichment EnrichmentConfig
	Billing    BillingConfig
	Storage    StorageConfig
	Cleanup    CleanupConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration // Per-request handler timeout
	ShutdownTimeout time.Duration
	MaxBodySize     int64
	MaxConns        int // Listener connection cap, 0 = unlimited
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional; when Host
// is empty the pattern cache falls through to postgres.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PatternTTL   time.Duration
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig holds bearer-token verification configuration. Token
// issuance happens elsewhere; this service only validates.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// ScannerConfig holds scan tool invocation configuration.
type ScannerConfig struct {
	// Mode selects "local" subprocess invocation or a "remote" scan
	// service.
	Mode       string
	RemoteURL  string
	WorkRoot   string
	MaxZipSize int64
	// MaxExtractedSize caps the total unzipped size to block zip bombs.
	MaxExtractedSize int64
	// Timeout bounds the scan subprocess or remote call. The pipeline
	// aborts this much work before the request deadline so it can still
	// return a structured error.
	Timeout     time.Duration
	AbortMargin time.Duration
	// GitleaksEnabled also runs the secrets scanner when available.
	GitleaksEnabled bool
}

// EnrichmentConfig holds model enrichment configuration.
type EnrichmentConfig struct {
	Provider        string // "claude", "openai", or "gemini"
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	Timeout         time.Duration
	MaxTokens       int
	Temperature     float64
	// MaxBatchSize caps findings per model request; larger scans are
	// chunked into sequential requests.
	MaxBatchSize int
}

// IsConfigured returns true if at least one provider API key is set.
func (c *EnrichmentConfig) IsConfigured() bool {
	return c.AnthropicAPIKey != "" || c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}

// BillingConfig holds billing provider configuration.
type BillingConfig struct {
	StripeSecretKey      string
	StripeWebhookSecret  string
	StripeAPIBaseURL     string
	CouponSecret         string
	WebhookToleranceSecs int
}

// EffectiveCouponSecret falls back to the Stripe key when no dedicated
// coupon secret is configured.
func (c *BillingConfig) EffectiveCouponSecret() string {
	if s := strings.TrimSpace(c.CouponSecret); s != "" {
		return s
	}
	return strings.TrimSpace(c.StripeSecretKey)
}

// StorageConfig holds S3 archive retention configuration. Optional.
type StorageConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// CleanupConfig holds background job schedules.
type CleanupConfig struct {
	// WorkdirSweepSpec is the cron spec for stale scan workdir removal.
	WorkdirSweepSpec string
	// WorkdirMaxAge is how old a leftover workdir must be to be swept.
	WorkdirMaxAge time.Duration
	// PatternRefreshSpec is the cron spec for pattern cache refresh.
	PatternRefreshSpec string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "vibescan"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 50<<20), // uploads are zips
			MaxConns:        getEnvInt("SERVER_MAX_CONNS", 0),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "vibescan"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "vibescan"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", ""),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PatternTTL:   getEnvDuration("REDIS_PATTERN_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "vibescan"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Scanner: ScannerConfig{
			Mode:             getEnv("SCANNER_MODE", "local"),
			RemoteURL:        getEnv("SCANNER_REMOTE_URL", ""),
			WorkRoot:         getEnv("SCANNER_WORK_ROOT", os.TempDir()),
			MaxZipSize:       getEnvInt64("SCANNER_MAX_ZIP_SIZE", 50<<20),
			MaxExtractedSize: getEnvInt64("SCANNER_MAX_EXTRACTED_SIZE", 500<<20),
			Timeout:          getEnvDuration("SCANNER_TIMEOUT", 60*time.Second),
			AbortMargin:      getEnvDuration("SCANNER_ABORT_MARGIN", 5*time.Second),
			GitleaksEnabled:  getEnvBool("SCANNER_GITLEAKS_ENABLED", true),
		},
		Enrichment: EnrichmentConfig{
			Provider:        getEnv("ENRICHMENT_PROVIDER", "claude"),
			Model:           getEnv("ENRICHMENT_MODEL", "claude-sonnet-4-6"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			Timeout:         getEnvDuration("ENRICHMENT_TIMEOUT", 30*time.Second),
			MaxTokens:       getEnvInt("ENRICHMENT_MAX_TOKENS", 4096),
			Temperature:     getEnvFloat("ENRICHMENT_TEMPERATURE", 0.1),
			MaxBatchSize:    getEnvInt("ENRICHMENT_MAX_BATCH_SIZE", 25),
		},
		Billing: BillingConfig{
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
			StripeAPIBaseURL:     getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
			CouponSecret:         getEnv("COUPON_SECRET", ""),
			WebhookToleranceSecs: getEnvInt("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),
		},
		Storage: StorageConfig{
			Enabled:         getEnvBool("STORAGE_ENABLED", false),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("STORAGE_USE_PATH_STYLE", false),
		},
		Cleanup: CleanupConfig{
			WorkdirSweepSpec:   getEnv("CLEANUP_WORKDIR_SWEEP_SPEC", "*/10 * * * *"),
			WorkdirMaxAge:      getEnvDuration("CLEANUP_WORKDIR_MAX_AGE", 30*time.Minute),
			PatternRefreshSpec: getEnv("CLEANUP_PATTERN_REFRESH_SPEC", "*/5 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Scanner.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("invalid scanner mode: %q", c.Scanner.Mode)
	}
	if c.Scanner.Mode == "remote" && c.Scanner.RemoteURL == "" {
		return fmt.Errorf("SCANNER_REMOTE_URL is required in remote mode")
	}
	if c.Enrichment.MaxBatchSize < 1 {
		return fmt.Errorf("invalid enrichment max batch size: %d", c.Enrichment.MaxBatchSize)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required when storage is enabled")
	}
	if c.App.Env == EnvProduction {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces requirements that only matter when the
// service faces real traffic.
func (c *Config) validateProduction() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters in production")
	}
	if c.Database.Password == "secret" {
		return fmt.Errorf("DB_PASSWORD must not use the default value in production")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must not include * in production")
		}
	}
	return nil
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the host:port address for Redis.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the host:port address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
