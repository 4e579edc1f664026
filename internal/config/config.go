// Package config loads and validates governor configuration.
//
// DESIGN: Configuration comes from a YAML file plus environment overrides.
// A .env file is loaded first (ignored if absent), then the YAML file, then
// environment variables win for secrets and connection URLs so deployments
// never need credentials on disk. Mutable operational values (budget,
// overrides, kill switch) live in the shared config store, not here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the governor service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	History   HistoryConfig   `yaml:"history"`
	Budget    BudgetConfig    `yaml:"budget"`
	Cache     CacheConfig     `yaml:"cache"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisConfig holds the shared-store connection settings. The cache, the
// spend counter, and the admin config store all live in the same Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// HistoryConfig holds the durable usage-history database settings.
type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// BudgetConfig holds spend-ceiling defaults.
type BudgetConfig struct {
	DefaultDailyUSD float64       `yaml:"default_daily_usd"`
	Staleness       time.Duration `yaml:"staleness"`
}

// CacheConfig holds fingerprint-cache tuning.
type CacheConfig struct {
	MinResponseLength int           `yaml:"min_response_length"`
	DailyTTL          time.Duration `yaml:"daily_ttl"`
	PersonalTTL       time.Duration `yaml:"personal_ttl"`
}

// ProvidersConfig holds the external collaborator endpoints.
type ProvidersConfig struct {
	Completion CompletionConfig `yaml:"completion"`
	Context    ContextConfig    `yaml:"context"`
}

// CompletionConfig configures the completion-provider HTTP client.
type CompletionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ContextConfig configures the context-provider HTTP client.
type ContextConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from the given YAML path and the environment.
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379",
			StoreTimeout: DefaultStoreTimeout,
		},
		History: HistoryConfig{
			Path:          "governor_history.db",
			RetentionDays: DefaultHistoryRetentionDays,
		},
		Budget: BudgetConfig{
			DefaultDailyUSD: DefaultDailyBudgetUSD,
			Staleness:       DefaultBudgetStaleness,
		},
		Cache: CacheConfig{
			MinResponseLength: DefaultMinCacheableLength,
			DailyTTL:          DefaultDailyTTL,
			PersonalTTL:       DefaultPersonalTTL,
		},
		Providers: ProvidersConfig{
			Completion: CompletionConfig{Timeout: DefaultCompletionTimeout},
			Context:    ContextConfig{Timeout: DefaultContextTimeout},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("COMPLETION_ENDPOINT"); v != "" {
		cfg.Providers.Completion.Endpoint = v
	}
	if v := os.Getenv("COMPLETION_API_KEY"); v != "" {
		cfg.Providers.Completion.APIKey = v
	}
	if v := os.Getenv("CONTEXT_ENDPOINT"); v != "" {
		cfg.Providers.Context.Endpoint = v
	}
	if v := os.Getenv("HISTORY_DB_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Budget.DefaultDailyUSD <= 0 {
		return fmt.Errorf("budget.default_daily_usd must be > 0, got %f", c.Budget.DefaultDailyUSD)
	}
	if c.Budget.Staleness < 0 {
		return fmt.Errorf("budget.staleness must be >= 0")
	}
	if c.Cache.MinResponseLength < 0 {
		return fmt.Errorf("cache.min_response_length must be >= 0")
	}
	if c.Cache.DailyTTL <= 0 || c.Cache.PersonalTTL <= 0 {
		return fmt.Errorf("cache TTLs must be > 0")
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be > 0, got %d", c.History.RetentionDays)
	}
	if c.Providers.Completion.Endpoint == "" {
		return fmt.Errorf("providers.completion.endpoint is required")
	}
	return nil
}
