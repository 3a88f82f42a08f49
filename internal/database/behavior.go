// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

var _ recommend.BehaviorStore = (*DB)(nil)

// InsertBehaviors appends behavior events. Events are immutable once
// written; repeated interactions for the same (user, product) accumulate as
// separate rows.
func (db *DB) InsertBehaviors(ctx context.Context, events []recommend.BehaviorEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO user_behaviors (user_id, product_id, category_id, behavior_type, quantity, created_at) VALUES ")
	args := make([]any, 0, len(events)*6)
	for i, ev := range events {
		if !ev.Type.Valid() {
			return fmt.Errorf("event %d: invalid behavior type %d", i, ev.Type)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		quantity := ev.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		args = append(args, ev.UserID, ev.ProductID, ev.CategoryID, int(ev.Type), quantity, ts)
	}

	if _, err := db.conn.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting behaviors: %w", err)
	}
	return nil
}

// RecentInteractions returns a user's most recent behavior events, newest
// first.
func (db *DB) RecentInteractions(ctx context.Context, userID int64, limit int) ([]recommend.BehaviorEvent, error) {
	query := `
		SELECT user_id, product_id, category_id, behavior_type, quantity, created_at
		FROM user_behaviors
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent interactions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var events []recommend.BehaviorEvent
	for rows.Next() {
		var (
			ev           recommend.BehaviorEvent
			behaviorType int
		)
		if err := rows.Scan(&ev.UserID, &ev.ProductID, &ev.CategoryID, &behaviorType, &ev.Quantity, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		ev.Type = recommend.BehaviorType(behaviorType)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return events, nil
}

// PurchaseVector builds the user's interest vector over products. The
// maxItems most recently touched distinct products participate; older
// interactions with other products are dropped, keeping heavy users' vectors
// bounded.
func (db *DB) PurchaseVector(ctx context.Context, userID int64, maxItems int) (recommend.SparseVector, error) {
	query := `
		WITH recent_products AS (
			SELECT product_id
			FROM user_behaviors
			WHERE user_id = ?
			GROUP BY product_id
			ORDER BY MAX(created_at) DESC
			LIMIT ?
		)
		SELECT b.product_id, b.behavior_type, b.quantity
		FROM user_behaviors b
		JOIN recent_products r ON r.product_id = b.product_id
		WHERE b.user_id = ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID, maxItems, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchase vector: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanVector(rows)
}

// ProductVector builds a product's interest vector over users, capped at
// the maxUsers most recently interacting distinct users.
func (db *DB) ProductVector(ctx context.Context, productID int64, maxUsers int) (recommend.SparseVector, error) {
	query := `
		WITH recent_users AS (
			SELECT user_id
			FROM user_behaviors
			WHERE product_id = ?
			GROUP BY user_id
			ORDER BY MAX(created_at) DESC
			LIMIT ?
		)
		SELECT b.user_id, b.behavior_type, b.quantity
		FROM user_behaviors b
		JOIN recent_users r ON r.user_id = b.user_id
		WHERE b.product_id = ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, productID, maxUsers, productID)
	if err != nil {
		return nil, fmt.Errorf("query product vector: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanVector(rows)
}

// scanVector accumulates (key, behavior_type, quantity) rows into a sparse
// vector using the behavior weights. Weighting lives in Go, not SQL, so
// there is a single source of truth for the weight table.
func scanVector(rows *sql.Rows) (recommend.SparseVector, error) {
	vec := make(recommend.SparseVector)
	for rows.Next() {
		var (
			key          int64
			behaviorType int
			quantity     float64
		)
		if err := rows.Scan(&key, &behaviorType, &quantity); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		ev := recommend.BehaviorEvent{Type: recommend.BehaviorType(behaviorType), Quantity: quantity}
		vec[key] += ev.WeightedValue()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector rows: %w", err)
	}
	return vec, nil
}

// ActiveUserIDs returns ids of users with behavior since the given time,
// ascending.
func (db *DB) ActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT DISTINCT user_id FROM user_behaviors
		WHERE created_at > ?
		ORDER BY user_id
	`, since)
}

// ActiveProductIDs returns ids of products with behavior since the given
// time, ascending.
func (db *DB) ActiveProductIDs(ctx context.Context, since time.Time) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT DISTINCT product_id FROM user_behaviors
		WHERE created_at > ?
		ORDER BY product_id
	`, since)
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// InteractionCounts returns per-product weighted interaction totals since
// the given time.
func (db *DB) InteractionCounts(ctx context.Context, since time.Time) (map[int64]float64, error) {
	query := `
		SELECT product_id, behavior_type, quantity
		FROM user_behaviors
		WHERE created_at > ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query interaction counts: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanVector(rows)
}

// InteractedProductIDs returns every product id the user has interacted
// with.
func (db *DB) InteractedProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	ids, err := db.queryIDs(ctx, `
		SELECT DISTINCT product_id FROM user_behaviors
		WHERE user_id = ?
		ORDER BY product_id
	`, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
