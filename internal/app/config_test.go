package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr: defaultAddr,
		Storage: StorageConfig{
			Driver:    DriverFile,
			Dir:       "data/carts",
			Retention: 720 * time.Hour,
		},
		Session: SessionConfig{IdleTimeout: 30 * time.Minute},
		OrderAPI: OrderAPIConfig{
			BaseURL: "https://orders.example.com/v1",
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{Max: 100, Window: time.Minute, CheckoutMax: 5, CheckoutWindow: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory", func(c *Config) { c.Storage = StorageConfig{Driver: DriverMemory} }, ""},
		{"postgres", func(c *Config) {
			c.Storage = StorageConfig{Driver: DriverPostgres, DatabaseURL: "postgres://localhost/tripcart"}
		}, ""},
		{"postgres without url", func(c *Config) { c.Storage.Driver = DriverPostgres }, "database URL is required"},
		{"negative retention", func(c *Config) {
			c.Storage = StorageConfig{Driver: DriverPostgres, DatabaseURL: "postgres://x", Retention: -time.Hour}
		}, "retention"},
		{"file without dir", func(c *Config) { c.Storage.Dir = "" }, "storage dir is required"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, `unknown storage driver "redis"`},
		{"no session eviction", func(c *Config) { c.Session.IdleTimeout = 0 }, ""},
		{"negative idle timeout", func(c *Config) { c.Session.IdleTimeout = -time.Minute }, "idle timeout"},
		{"no order api", func(c *Config) { c.OrderAPI.BaseURL = "" }, "base URL is required"},
		{"relative order api", func(c *Config) { c.OrderAPI.BaseURL = "/orders" }, "absolute http(s) URL"},
		{"ftp order api", func(c *Config) { c.OrderAPI.BaseURL = "ftp://orders.example.com" }, "absolute http(s) URL"},
		{"negative parallel", func(c *Config) { c.OrderAPI.MaxParallel = -1 }, "max parallel"},
		{"negative resubmit", func(c *Config) { c.OrderAPI.ResubmitCapacity = -1 }, "resubmit capacity"},
		{"negative rate", func(c *Config) { c.RateLimit.CheckoutMax = -1 }, "rate limits"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := validConfig()
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := validConfig()
	cfg.Addr = "127.0.0.1:7000"
	cfg.Storage.DatabaseURL = "postgres://explicit/db"
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
