package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the paygate server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	Dispatch DispatchConfig
	Pricing  PricingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// PaymentConfig configures the payment network client and the per-instrument
// settlement monitor.
type PaymentConfig struct {
	ServiceURL      string
	APIKey          string
	Network         string
	AgentIdentifier string
	SellerVKey      string
	Timeout         time.Duration
	PollInterval    time.Duration
}

// DispatchConfig configures the downstream execution service client.
type DispatchConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PricingConfig fixes the fee per payable action, in the payment network's
// smallest unit.
type PricingConfig struct {
	CreateProject int64
	Interact      int64
	Analyze       int64
	Unit          string
}

var validNetworks = map[string]bool{
	"Preprod": true,
	"Mainnet": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PAYGATE_PORT", 8080),
			Env:  envString("PAYGATE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Payment: PaymentConfig{
			ServiceURL:      os.Getenv("PAYMENT_SERVICE_URL"),
			APIKey:          os.Getenv("PAYMENT_API_KEY"),
			Network:         envString("NETWORK", "Preprod"),
			AgentIdentifier: os.Getenv("AGENT_IDENTIFIER"),
			SellerVKey:      os.Getenv("SELLER_VKEY"),
			Timeout:         envDuration("PAYMENT_TIMEOUT", 30*time.Second),
			PollInterval:    envDuration("PAYMENT_POLL_INTERVAL", 20*time.Second),
		},
		Dispatch: DispatchConfig{
			BaseURL: envString("EXPRESS_SERVER_URL", "http://localhost:3000"),
			Timeout: envDuration("EXPRESS_TIMEOUT", 30*time.Second),
		},
		Pricing: PricingConfig{
			CreateProject: envInt64("PRICE_CREATE_PROJECT", 5_000_000),
			Interact:      envInt64("PRICE_INTERACT", 1_000_000),
			Analyze:       envInt64("PRICE_ANALYZE", 2_000_000),
			Unit:          envString("PRICE_UNIT", "lovelace"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Payment.ServiceURL == "" {
		return fmt.Errorf("PAYMENT_SERVICE_URL is required")
	}
	if !strings.HasPrefix(c.Payment.ServiceURL, "http://") && !strings.HasPrefix(c.Payment.ServiceURL, "https://") {
		return fmt.Errorf("PAYMENT_SERVICE_URL must start with http:// or https://, got %q", c.Payment.ServiceURL)
	}
	if c.Payment.APIKey == "" {
		return fmt.Errorf("PAYMENT_API_KEY is required")
	}
	if !validNetworks[c.Payment.Network] {
		return fmt.Errorf("NETWORK must be one of Preprod, Mainnet; got %q", c.Payment.Network)
	}
	if c.Payment.AgentIdentifier == "" {
		return fmt.Errorf("AGENT_IDENTIFIER is required")
	}
	if c.Payment.SellerVKey == "" {
		return fmt.Errorf("SELLER_VKEY is required")
	}
	if c.Payment.PollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
	}

	if !strings.HasPrefix(c.Dispatch.BaseURL, "http://") && !strings.HasPrefix(c.Dispatch.BaseURL, "https://") {
		return fmt.Errorf("EXPRESS_SERVER_URL must start with http:// or https://, got %q", c.Dispatch.BaseURL)
	}

	if c.Pricing.CreateProject <= 0 || c.Pricing.Interact <= 0 || c.Pricing.Analyze <= 0 {
		return fmt.Errorf("prices must be positive")
	}

	return nil
}

// AmountFor returns the fee for a payable action, or false for unknown actions.
func (p PricingConfig) AmountFor(action string) (int64, bool) {
	switch action {
	case "create_project":
		return p.CreateProject, true
	case "interact":
		return p.Interact, true
	case "analyze":
		return p.Analyze, true
	}
	return 0, false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
