// Package config defines configuration for the engine reference harness
// (cmd/engine-cli). Config is loaded from a YAML file (default:
// configs/config.yaml) with sensitive/deployment fields overridable via
// PREDENGINE_* environment variables, and a .env file may seed those
// variables in local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level harness configuration.
type Config struct {
	LMSR    LMSRConfig    `mapstructure:"lmsr"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LMSRConfig holds the default liquidity parameter and the quote timeout.
// Harness presets carry their own liquidity values and do not read it.
type LMSRConfig struct {
	DefaultLiquidity float64       `mapstructure:"default_liquidity"`
	QuoteTimeout     time.Duration `mapstructure:"quote_timeout"`
}

// StoreConfig selects and configures the audit/snapshot persistence
// backend.
type StoreConfig struct {
	Driver       string `mapstructure:"driver"` // "memory", "postgres", "sqlite"
	DSN          string `mapstructure:"dsn"`
	RedisAddr    string `mapstructure:"redis_addr"`
	CacheMaxCost int64  `mapstructure:"cache_max_cost"`
}

// LoggingConfig holds log level and format settings. cmd/engine-cli
// serve does not read them: it always logs JSON through slog at the
// default level.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds settings for the optional reference HTTP/WS front
// end. cmd/engine-cli serve reads only Port; Enabled is checked by
// Validate alone, and AllowedOrigins is not read (the router allows every
// origin).
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig holds settings for the Prometheus metrics endpoint.
// cmd/engine-cli serve does not read them: /metrics is served on the
// main HTTP router and port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with PREDENGINE_* environment
// overrides, loading a .env file first (if present) to seed those
// variables in local development.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PREDENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("lmsr.default_liquidity", 100.0)
	v.SetDefault("lmsr.quote_timeout", "5s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.cache_max_cost", 1<<20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.port", 9090)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.LMSR.DefaultLiquidity <= 0 {
		return fmt.Errorf("lmsr.default_liquidity must be > 0")
	}
	switch c.Store.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("store.driver must be one of: memory, postgres, sqlite")
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.driver is postgres")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server.enabled is true")
	}
	return nil
}
