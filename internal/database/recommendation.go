// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

var _ recommend.RecommendationStore = (*DB)(nil)

const resultColumns = "id, user_id, product_id, score, algorithm_type, expire_time, created_at"

// UpsertResults writes results in a single multi-row upsert keyed on
// (user_id, product_id, algorithm_type).
func (db *DB) UpsertResults(ctx context.Context, results []recommend.RecommendationResult) error {
	if len(results) == 0 {
		return nil
	}
	return upsertResults(ctx, db.conn, results)
}

// execer abstracts *sql.DB and *sql.Tx for the shared upsert.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertResults(ctx context.Context, ex execer, results []recommend.RecommendationResult) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO recommendation_results (" + resultColumns + ") VALUES ")
	args := make([]any, 0, len(results)*7)
	for i, r := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.ID, r.UserID, r.ProductID, r.Score, int(r.Algorithm), r.ExpireTime, r.CreatedAt)
	}
	sb.WriteString(` ON CONFLICT (user_id, product_id, algorithm_type) DO UPDATE SET
		id = excluded.id,
		score = excluded.score,
		expire_time = excluded.expire_time,
		created_at = excluded.created_at`)

	if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upserting recommendation results: %w", err)
	}
	return nil
}

// ReplaceForUser atomically swaps the user's results for the given
// algorithms. New rows are upserted first, then rows of those algorithms
// older than the new batch are deleted, all inside one transaction, so a
// concurrent reader sees either the old set or the new set but never an
// empty window.
func (db *DB) ReplaceForUser(ctx context.Context, userID int64, algorithms []recommend.AlgorithmType, results []recommend.RecommendationResult) error {
	if len(algorithms) == 0 {
		return fmt.Errorf("at least one algorithm is required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op once committed
	}()

	batchTime := time.Now()
	if len(results) > 0 {
		batchTime = results[0].CreatedAt
		if err := upsertResults(ctx, tx, results); err != nil {
			return err
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(algorithms)), ", ")
	query := fmt.Sprintf(`
		DELETE FROM recommendation_results
		WHERE user_id = ? AND algorithm_type IN (%s) AND created_at < ?
	`, placeholders)
	args := make([]any, 0, len(algorithms)+2)
	args = append(args, userID)
	for _, a := range algorithms {
		args = append(args, int(a))
	}
	args = append(args, batchTime)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting stale results: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replacement: %w", err)
	}
	return nil
}

// DeleteByUserAndAlgorithms removes all of the user's results for the given
// algorithms.
func (db *DB) DeleteByUserAndAlgorithms(ctx context.Context, userID int64, algorithms []recommend.AlgorithmType) error {
	if len(algorithms) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(algorithms)), ", ")
	query := fmt.Sprintf("DELETE FROM recommendation_results WHERE user_id = ? AND algorithm_type IN (%s)", placeholders)
	args := make([]any, 0, len(algorithms)+1)
	args = append(args, userID)
	for _, a := range algorithms {
		args = append(args, int(a))
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting results: %w", err)
	}
	return nil
}

// ValidForUser returns unexpired results for the user, highest score first,
// ties broken by smaller product id.
func (db *DB) ValidForUser(ctx context.Context, userID int64, now time.Time, limit int) ([]recommend.RecommendationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM recommendation_results
		WHERE user_id = ? AND expire_time > ?
		ORDER BY score DESC, product_id ASC
		LIMIT ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query valid results: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanResults(rows)
}

// ValidForUserByAlgorithm is ValidForUser restricted to one algorithm.
func (db *DB) ValidForUserByAlgorithm(ctx context.Context, userID int64, algorithm recommend.AlgorithmType, now time.Time, limit int) ([]recommend.RecommendationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM recommendation_results
		WHERE user_id = ? AND algorithm_type = ? AND expire_time > ?
		ORDER BY score DESC, product_id ASC
		LIMIT ?
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID, int(algorithm), now, limit)
	if err != nil {
		return nil, fmt.Errorf("query valid results by algorithm: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanResults(rows)
}

// Find returns the unexpired result for (user, product) regardless of
// algorithm, preferring the highest score when several exist.
func (db *DB) Find(ctx context.Context, userID, productID int64, now time.Time) (recommend.RecommendationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM recommendation_results
		WHERE user_id = ? AND product_id = ? AND expire_time > ?
		ORDER BY score DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		r    recommend.RecommendationResult
		algo int
	)
	err := db.conn.QueryRowContext(ctx, query, userID, productID, now).
		Scan(&r.ID, &r.UserID, &r.ProductID, &r.Score, &algo, &r.ExpireTime, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return recommend.RecommendationResult{}, recommend.ErrNotFound
		}
		return recommend.RecommendationResult{}, fmt.Errorf("query result: %w", err)
	}
	r.Algorithm = recommend.AlgorithmType(algo)
	return r, nil
}

// DeleteExpired removes results whose expire time is at or before now and
// returns the number removed.
func (db *DB) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM recommendation_results WHERE expire_time <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired results: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	return removed, nil
}

func scanResults(rows *sql.Rows) ([]recommend.RecommendationResult, error) {
	var results []recommend.RecommendationResult
	for rows.Next() {
		var (
			r    recommend.RecommendationResult
			algo int
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ProductID, &r.Score, &algo, &r.ExpireTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Algorithm = recommend.AlgorithmType(algo)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
