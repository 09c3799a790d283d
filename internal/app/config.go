package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (TRIPCART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	SecureCookie bool   `default:"false" usage:"Mark the cart session cookie Secure" flag:"secure-cookie"`
	Storage      StorageConfig
	Session      SessionConfig
	OrderAPI     OrderAPIConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects where cart snapshots are persisted.
type StorageConfig struct {
	Driver      string        `default:"file" usage:"Cart storage driver: memory, file or postgres"`
	Dir         string        `default:"data/carts" usage:"Directory for the file driver"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (TRIPCART_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Retention   time.Duration `default:"720h" usage:"Drop postgres carts idle for longer than this; 0 keeps them forever"`
}

// SessionConfig controls the per-session cart cache.
type SessionConfig struct {
	IdleTimeout time.Duration `default:"30m" usage:"Evict cached carts idle for longer than this; 0 keeps them until restart" flag:"session-idle-timeout"`
}

// OrderAPIConfig configures the external Order API client.
type OrderAPIConfig struct {
	BaseURL          string        `usage:"Order API root URL" flag:"order-api-url"`
	Timeout          time.Duration `default:"10s" usage:"Timeout of a single order request"`
	MaxParallel      int           `default:"0" usage:"Max concurrent order requests per checkout; 0 is unlimited"`
	ResubmitCapacity int           `default:"100000" usage:"Line ids remembered to detect resubmits; 0 disables"`
}

// RateLimitConfig controls the sliding window rate limiters.
type RateLimitConfig struct {
	Max            int           `default:"100" usage:"Max requests per window and client"`
	Window         time.Duration `default:"1m"  usage:"Rate limit window duration"`
	CheckoutMax    int           `default:"5" usage:"Max checkouts per window and session" flag:"checkout-max"`
	CheckoutWindow time.Duration `default:"1m" usage:"Checkout rate limit window" flag:"checkout-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TRIPCART",
		Files:     []string{"config.yaml", "/etc/tripcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) such as DATABASE_URL and PORT onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set TRIPCART_STORAGE_DATABASE_URL or DATABASE_URL")
		}
		if c.Storage.Retention < 0 {
			return errors.New("storage retention must not be negative")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Session.IdleTimeout < 0 {
		return errors.New("session idle timeout must not be negative")
	}

	if c.OrderAPI.BaseURL == "" {
		return errors.New("order API base URL is required: set TRIPCART_ORDER_API_BASE_URL")
	}
	u, err := url.Parse(c.OrderAPI.BaseURL)
	if err != nil {
		return errors.Wrap(err, "order API base URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("order API base URL %q must be an absolute http(s) URL", c.OrderAPI.BaseURL)
	}
	if c.OrderAPI.MaxParallel < 0 {
		return errors.New("order API max parallel must not be negative")
	}
	if c.OrderAPI.ResubmitCapacity < 0 {
		return errors.New("order API resubmit capacity must not be negative")
	}
	if c.RateLimit.Max < 0 || c.RateLimit.CheckoutMax < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}
