package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// GatewayConfig configures the external payment processor.
type GatewayConfig struct {
	Provider  string        `yaml:"provider"` // razorpay | noop
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BillingConfig holds the platform-wide billing values. It is injected into
// the payment and enrollment use cases; nothing reads these from ambient
// process state.
type BillingConfig struct {
	RegistrationFee       int64  `yaml:"registration_fee"`
	Currency              string `yaml:"currency"`
	DefaultAccessDuration string `yaml:"default_access_duration"` // e.g. "1 year"
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Billing  BillingConfig  `yaml:"billing"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Database.PoolSize == 0 {
		c.Database.PoolSize = 10
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 15 * time.Second
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "INR"
	}
	if c.Billing.DefaultAccessDuration == "" {
		c.Billing.DefaultAccessDuration = "1 year"
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Billing.RegistrationFee < 0 {
		return errors.New("billing.registration_fee must be non-negative")
	}
	if c.Gateway.Provider == "razorpay" && (c.Gateway.KeyID == "" || c.Gateway.KeySecret == "") {
		return errors.New("gateway.key_id and gateway.key_secret are required for razorpay")
	}
	return nil
}
