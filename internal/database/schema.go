// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaStatements define the tables and indexes, executed in order.
//
// Similarity tables enforce the canonical pair ordering (smaller id first)
// with a CHECK constraint; the composite primary key makes rebuild upserts
// idempotent. recommendation_results carries a unique key on
// (user_id, product_id, algorithm_type) so regeneration overwrites instead
// of duplicating.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_behavior_id START 1`,

	`CREATE TABLE IF NOT EXISTS user_behaviors (
		id            BIGINT PRIMARY KEY DEFAULT nextval('seq_behavior_id'),
		user_id       BIGINT NOT NULL,
		product_id    BIGINT NOT NULL,
		category_id   BIGINT NOT NULL DEFAULT 0,
		behavior_type INTEGER NOT NULL,
		quantity      DOUBLE NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS user_similarity (
		user_a     BIGINT NOT NULL,
		user_b     BIGINT NOT NULL,
		similarity DOUBLE NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_a, user_b),
		CHECK (user_a < user_b)
	)`,

	`CREATE TABLE IF NOT EXISTS product_similarity (
		product_a  BIGINT NOT NULL,
		product_b  BIGINT NOT NULL,
		similarity DOUBLE NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (product_a, product_b),
		CHECK (product_a < product_b)
	)`,

	`CREATE TABLE IF NOT EXISTS recommendation_results (
		id             VARCHAR NOT NULL,
		user_id        BIGINT NOT NULL,
		product_id     BIGINT NOT NULL,
		score          DOUBLE NOT NULL,
		algorithm_type INTEGER NOT NULL,
		expire_time    TIMESTAMP NOT NULL,
		created_at     TIMESTAMP NOT NULL,
		UNIQUE (user_id, product_id, algorithm_type)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_behaviors_user ON user_behaviors (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_product ON user_behaviors (product_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_created ON user_behaviors (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_results_user_expire ON recommendation_results (user_id, expire_time)`,
	`CREATE INDEX IF NOT EXISTS idx_results_expire ON recommendation_results (expire_time)`,
}

// createSchema creates all tables and indexes.
func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
