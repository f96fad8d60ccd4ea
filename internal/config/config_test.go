package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vibescan", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, int64(50<<20), cfg.Server.MaxBodySize)

	assert.Equal(t, "local", cfg.Scanner.Mode)
	assert.True(t, cfg.Scanner.GitleaksEnabled)

	assert.Equal(t, 25, cfg.Enrichment.MaxBatchSize)
	assert.Equal(t, 30*time.Second, cfg.Enrichment.Timeout)
	assert.False(t, cfg.Enrichment.IsConfigured())

	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 10*time.Minute, cfg.Redis.PatternTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ENRICHMENT_MAX_BATCH_SIZE", "10")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.vibescan.io, https://staging.vibescan.io")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Enrichment.MaxBatchSize)
	assert.True(t, cfg.Enrichment.IsConfigured())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr())
	assert.Equal(t,
		[]string{"https://app.vibescan.io", "https://staging.vibescan.io"},
		cfg.CORS.AllowedOrigins)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("ENRICHMENT_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Enrichment.Timeout)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad scanner mode",
			mutate:  func(c *Config) { c.Scanner.Mode = "carrier-pigeon" },
			wantErr: "invalid scanner mode",
		},
		{
			name:    "remote mode needs url",
			mutate:  func(c *Config) { c.Scanner.Mode = "remote" },
			wantErr: "SCANNER_REMOTE_URL",
		},
		{
			name:    "batch size floor",
			mutate:  func(c *Config) { c.Enrichment.MaxBatchSize = 0 },
			wantErr: "max batch size",
		},
		{
			name:    "storage needs bucket",
			mutate:  func(c *Config) { c.Storage.Enabled = true },
			wantErr: "STORAGE_BUCKET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProduction(t *testing.T) {
	prod := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.App.Env = EnvProduction
		cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
		cfg.Database.Password = "real-password"
		cfg.CORS.AllowedOrigins = []string{"https://app.vibescan.io"}
		return cfg
	}

	cfg := prod()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsProduction())

	cfg = prod()
	cfg.Auth.JWTSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "AUTH_JWT_SECRET is required")

	cfg = prod()
	cfg.Auth.JWTSecret = "short"
	assert.ErrorContains(t, cfg.Validate(), "at least 32 characters")

	cfg = prod()
	cfg.Database.Password = "secret"
	assert.ErrorContains(t, cfg.Validate(), "DB_PASSWORD")

	cfg = prod()
	cfg.CORS.AllowedOrigins = []string{"https://app.vibescan.io", "*"}
	assert.ErrorContains(t, cfg.Validate(), "CORS_ALLOWED_ORIGINS")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "svc",
		Password: "pw", Name: "vibescan", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=svc password=pw dbname=vibescan sslmode=require",
		cfg.DSN())
}

func TestEffectiveCouponSecret(t *testing.T) {
	cfg := BillingConfig{StripeSecretKey: "sk_live_x"}
	assert.Equal(t, "sk_live_x", cfg.EffectiveCouponSecret())

	cfg.CouponSecret = "  coupon-secret  "
	assert.Equal(t, "coupon-secret", cfg.EffectiveCouponSecret())
}
