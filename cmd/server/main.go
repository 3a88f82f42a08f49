// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package main is the entry point for the mall-recommend server.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and MALL_* environment
//     variables (Koanf v2)
//  2. Database: DuckDB behavior, similarity, and recommendation storage
//  3. Catalog client (optional): product shelf status with a circuit breaker
//  4. Redis cache (optional): read-through cache for recommendation lists
//  5. Recommendation engine: candidate sources, aggregator, matrix builder
//  6. Supervisor tree: background jobs and the HTTP API under suture
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables with the MALL_ prefix (see config.yaml.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The engine runs standalone by default. Optional integrations:
//   - Catalog service: MALL_CATALOG_ENABLED=true, MALL_CATALOG_BASE_URL
//   - Redis cache: MALL_REDIS_ENABLED=true, MALL_REDIS_ADDR
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (bounded by shutdown_timeout)
//   - Stops background jobs and closes the database
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sjl1805/mall-recommend/internal/api"
	"github.com/sjl1805/mall-recommend/internal/cache"
	"github.com/sjl1805/mall-recommend/internal/catalog"
	"github.com/sjl1805/mall-recommend/internal/config"
	"github.com/sjl1805/mall-recommend/internal/database"
	"github.com/sjl1805/mall-recommend/internal/logging"
	"github.com/sjl1805/mall-recommend/internal/recommend"
	"github.com/sjl1805/mall-recommend/internal/supervisor"
	"github.com/sjl1805/mall-recommend/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("catalog_enabled", cfg.Catalog.Enabled).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Msg("Starting mall-recommend")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	logger := logging.Logger()
	engineCfg := cfg.EngineConfig()

	// Catalog integration is optional. Without it the engine skips shelf
	// status filtering and the new-product source is not registered.
	var catalogClient recommend.Catalog
	if cfg.Catalog.Enabled {
		catalogClient = catalog.NewClient(&cfg.Catalog)
		logging.Info().Str("base_url", cfg.Catalog.BaseURL).Msg("Catalog client enabled")
	} else {
		logging.Info().Msg("Catalog integration disabled - running in standalone mode")
	}

	// Redis is optional. Without it an in-process LRU serves the read
	// cache so standalone deployments still avoid repeated DB reads.
	var resultCache recommend.ResultCache = cache.NewMemoryCache(0, cfg.Redis.TTL)
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(context.Background(), &cfg.Redis)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis client")
			}
		}()
		resultCache = redisCache
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Redis cache enabled")
	}

	// Candidate sources in fallback order: the aggregator tries personal
	// sources first and falls back to popularity when they yield nothing.
	personal := []recommend.CandidateSource{
		recommend.NewUserCFSource(db, db, engineCfg, logger),
		recommend.NewItemCFSource(db, db, engineCfg, logger),
	}
	if catalogClient != nil {
		personal = append(personal, recommend.NewNewProductSource(db, catalogClient, engineCfg, logger))
	}
	popularity := recommend.NewPopularitySource(db, engineCfg, logger)

	aggregator, err := recommend.NewAggregator(db, catalogClient, resultCache, personal, popularity, engineCfg, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create aggregator")
	}

	builder, err := recommend.NewMatrixBuilder(db, db, engineCfg, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create matrix builder")
	}

	handler := api.NewHandler(aggregator, db, builder, aggregator, db, cfg.Recommend.DefaultLimit)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddJobService(services.NewMatrixService(builder, db, services.MatrixServiceConfig{
		Interval:       cfg.Scheduler.MatrixInterval,
		Retention:      cfg.Recommend.SimilarityRetention,
		BuildOnStartup: cfg.Scheduler.BuildOnStartup,
	}, logger))
	tree.AddJobService(services.NewGenerateService(db, aggregator, services.GenerateServiceConfig{
		Interval:     cfg.Scheduler.GenerateInterval,
		ActiveWindow: cfg.Recommend.ActiveWindow,
		Limit:        cfg.Recommend.DefaultLimit,
	}, logger))
	tree.AddJobService(services.NewCleanupService(aggregator, cfg.Scheduler.CleanupInterval, logger))

	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
