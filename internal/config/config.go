// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package config loads and validates service configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables with the MALL_ prefix (highest priority).
package config

import (
	"time"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

// Config is the root configuration for the recommendation service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Redis     RedisConfig     `koanf:"redis"`
	Recommend RecommendConfig `koanf:"recommend"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path            string        `koanf:"path" validate:"required"`
	MaxMemory       string        `koanf:"max_memory"`
	Threads         int           `koanf:"threads" validate:"min=0"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// CatalogConfig holds settings for the product catalog service client.
type CatalogConfig struct {
	// Enabled switches catalog integration on. When false the engine
	// skips shelf-status filtering and the new-product source yields
	// nothing.
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"min=100ms"`

	// RequestsPerSecond and Burst bound the client-side request rate.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`
	Burst             int     `koanf:"burst" validate:"min=1"`

	// Circuit breaker settings.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests" validate:"min=1"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
	BreakerFailures    uint32        `koanf:"breaker_failures" validate:"min=1"`
}

// RedisConfig holds settings for the recommendation read cache.
type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr" validate:"required_if=Enabled true"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"min=0"`
	TTL      time.Duration `koanf:"ttl" validate:"min=1s"`
}

// RecommendConfig holds the recommendation engine tunables.
type RecommendConfig struct {
	SimilarUserCount    int           `koanf:"similar_user_count" validate:"min=1"`
	SimilarityThreshold float64       `koanf:"similarity_threshold" validate:"min=0,max=1"`
	Damping             float64       `koanf:"damping" validate:"gt=0,max=1"`
	RecentLimit         int           `koanf:"recent_limit" validate:"min=1"`
	ItemAnchorLimit     int           `koanf:"item_anchor_limit" validate:"min=1"`
	PurchaseVectorCap   int           `koanf:"purchase_vector_cap" validate:"min=1"`
	ProductVectorCap    int           `koanf:"product_vector_cap" validate:"min=1"`
	PopularityWindow    time.Duration `koanf:"popularity_window" validate:"min=1h"`
	NewProductWindow    time.Duration `koanf:"new_product_window" validate:"min=1h"`
	ResultTTL           time.Duration `koanf:"result_ttl" validate:"min=1h"`
	BatchSize           int           `koanf:"batch_size" validate:"min=1"`
	ActiveWindow        time.Duration `koanf:"active_window" validate:"min=1h"`
	SimilarityRetention time.Duration `koanf:"similarity_retention" validate:"min=1h"`

	// DefaultLimit is the recommendation set size used by scheduled
	// generation and as the API default.
	DefaultLimit int `koanf:"default_limit" validate:"min=1,max=100"`
}

// SchedulerConfig holds the background job cadence.
type SchedulerConfig struct {
	MatrixInterval   time.Duration `koanf:"matrix_interval" validate:"min=1m"`
	GenerateInterval time.Duration `koanf:"generate_interval" validate:"min=1m"`
	CleanupInterval  time.Duration `koanf:"cleanup_interval" validate:"min=1m"`

	// BuildOnStartup runs a matrix build immediately on service start
	// instead of waiting for the first tick.
	BuildOnStartup bool `koanf:"build_on_startup"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before file and
// environment overrides.
func defaultConfig() *Config {
	engine := recommend.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8085,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:            "/data/mall-recommend.duckdb",
			MaxMemory:       "1GB",
			Threads:         0, // 0 = runtime.NumCPU()
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
		},
		Catalog: CatalogConfig{
			Enabled:            false, // standalone mode by default
			BaseURL:            "",
			Timeout:            5 * time.Second,
			RequestsPerSecond:  50,
			Burst:              10,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
			BreakerFailures:    5,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:6379",
			Password: "",
			DB:       0,
			TTL:      5 * time.Minute,
		},
		Recommend: RecommendConfig{
			SimilarUserCount:    engine.SimilarUserCount,
			SimilarityThreshold: engine.SimilarityThreshold,
			Damping:             engine.Damping,
			RecentLimit:         engine.RecentLimit,
			ItemAnchorLimit:     engine.ItemAnchorLimit,
			PurchaseVectorCap:   engine.PurchaseVectorCap,
			ProductVectorCap:    engine.ProductVectorCap,
			PopularityWindow:    engine.PopularityWindow,
			NewProductWindow:    engine.NewProductWindow,
			ResultTTL:           engine.ResultTTL,
			BatchSize:           engine.BatchSize,
			ActiveWindow:        engine.ActiveWindow,
			SimilarityRetention: engine.SimilarityRetention,
			DefaultLimit:        20,
		},
		Scheduler: SchedulerConfig{
			MatrixInterval:   24 * time.Hour,
			GenerateInterval: 6 * time.Hour,
			CleanupInterval:  time.Hour,
			BuildOnStartup:   false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// EngineConfig converts the loaded recommendation settings into the engine's
// own config type.
func (c *Config) EngineConfig() recommend.Config {
	return recommend.Config{
		SimilarUserCount:    c.Recommend.SimilarUserCount,
		SimilarityThreshold: c.Recommend.SimilarityThreshold,
		Damping:             c.Recommend.Damping,
		RecentLimit:         c.Recommend.RecentLimit,
		ItemAnchorLimit:     c.Recommend.ItemAnchorLimit,
		PurchaseVectorCap:   c.Recommend.PurchaseVectorCap,
		ProductVectorCap:    c.Recommend.ProductVectorCap,
		PopularityWindow:    c.Recommend.PopularityWindow,
		NewProductWindow:    c.Recommend.NewProductWindow,
		ResultTTL:           c.Recommend.ResultTTL,
		BatchSize:           c.Recommend.BatchSize,
		ActiveWindow:        c.Recommend.ActiveWindow,
		SimilarityRetention: c.Recommend.SimilarityRetention,
	}
}
