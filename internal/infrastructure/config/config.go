package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Store     StoreConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StorageConfig holds persistence configuration.
// An empty Path selects the in-memory store.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:"arcadia.db"`
}

// StoreConfig holds extension store aggregator configuration.
type StoreConfig struct {
	FetchTimeout    time.Duration `envconfig:"STORE_FETCH_TIMEOUT" default:"10s"`
	SeedFile        string        `envconfig:"STORE_SEED_FILE" default:"sources.yaml"`
	DetailsCacheTTL time.Duration `envconfig:"STORE_DETAILS_CACHE_TTL" default:"5m"`
	MaxPageSize     int           `envconfig:"STORE_MAX_PAGE_SIZE" default:"100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Path: "arcadia.db",
		},
		Store: StoreConfig{
			FetchTimeout:    10 * time.Second,
			SeedFile:        "sources.yaml",
			DetailsCacheTTL: 5 * time.Minute,
			MaxPageSize:     100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
