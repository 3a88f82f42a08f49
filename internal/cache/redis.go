// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package cache provides the recommendation read cache: a Redis-backed
// implementation for shared deployments and an in-process LRU for
// standalone ones.
//
// Entries are keyed per (user, limit) so differently sized reads never serve
// each other's payloads. Invalidation drops every entry belonging to a user,
// which keeps regeneration simple: purge the user's keys and let the next
// read repopulate them.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sjl1805/mall-recommend/internal/config"
	"github.com/sjl1805/mall-recommend/internal/logging"
	"github.com/sjl1805/mall-recommend/internal/recommend"
)

var _ recommend.ResultCache = (*RedisCache)(nil)

// RedisCache caches serialized recommendation lists in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logging.With().Str("component", "result-cache").Logger(),
	}, nil
}

// key builds the cache key for a (user, limit) read.
func key(userID int64, limit int) string {
	return "rec:user:" + strconv.FormatInt(userID, 10) + ":n:" + strconv.Itoa(limit)
}

// userPattern matches every cache key belonging to a user.
func userPattern(userID int64) string {
	return "rec:user:" + strconv.FormatInt(userID, 10) + ":n:*"
}

// Get returns the cached results for (user, limit) and whether the key was
// present. A corrupt entry is treated as a miss and dropped.
func (c *RedisCache) Get(ctx context.Context, userID int64, limit int) ([]recommend.RecommendationResult, bool, error) {
	k := key(userID, limit)
	payload, err := c.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", k, err)
	}

	var results []recommend.RecommendationResult
	if err := json.Unmarshal(payload, &results); err != nil {
		c.logger.Warn().Err(err).Str("key", k).Msg("dropping corrupt cache entry")
		if delErr := c.client.Del(ctx, k).Err(); delErr != nil {
			c.logger.Warn().Err(delErr).Str("key", k).Msg("failed to drop corrupt cache entry")
		}
		return nil, false, nil
	}
	return results, true, nil
}

// Set stores results for (user, limit) with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID int64, limit int, results []recommend.RecommendationResult) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	k := key(userID, limit)
	if err := c.client.Set(ctx, k, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", k, err)
	}
	return nil
}

// Invalidate drops every cached entry for the user. Keys are discovered with
// SCAN so a large keyspace never blocks the server.
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	iter := c.client.Scan(ctx, 0, userPattern(userID), 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys for user %d: %w", userID, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting cache keys for user %d: %w", userID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
