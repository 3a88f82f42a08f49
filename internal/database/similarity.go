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

var _ recommend.SimilarityStore = (*DB)(nil)

// similarityTable maps a matrix kind to its table and column names.
func similarityTable(kind recommend.SimilarityKind) (table, colA, colB string, err error) {
	switch kind {
	case recommend.KindUser:
		return "user_similarity", "user_a", "user_b", nil
	case recommend.KindProduct:
		return "product_similarity", "product_a", "product_b", nil
	default:
		return "", "", "", fmt.Errorf("unknown similarity kind %d", kind)
	}
}

// UpsertPairs writes a batch of canonical pairs in a single multi-row
// upsert. The composite primary key guarantees a rebuild overwrites rather
// than duplicates.
func (db *DB) UpsertPairs(ctx context.Context, kind recommend.SimilarityKind, pairs []recommend.SimilarityPair) error {
	if len(pairs) == 0 {
		return nil
	}
	table, colA, colB, err := similarityTable(kind)
	if err != nil {
		return err
	}

	now := time.Now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s, %s, similarity, updated_at) VALUES ", table, colA, colB)
	args := make([]any, 0, len(pairs)*4)
	for i, p := range pairs {
		if p.IDA >= p.IDB {
			return fmt.Errorf("pair %d violates canonical ordering: (%d, %d)", i, p.IDA, p.IDB)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, p.IDA, p.IDB, p.Similarity, now)
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s, %s) DO UPDATE SET similarity = excluded.similarity, updated_at = excluded.updated_at", colA, colB)

	if _, err := db.conn.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upserting %s pairs: %w", table, err)
	}
	return nil
}

// MostSimilar returns up to k pairs involving id, ordered by similarity
// descending and partner id ascending on ties.
func (db *DB) MostSimilar(ctx context.Context, kind recommend.SimilarityKind, id int64, k int) ([]recommend.SimilarityPair, error) {
	table, colA, colB, err := similarityTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %[2]s, %[3]s, similarity, updated_at
		FROM %[1]s
		WHERE %[2]s = ? OR %[3]s = ?
		ORDER BY similarity DESC,
			CASE WHEN %[2]s = ? THEN %[3]s ELSE %[2]s END ASC
		LIMIT ?
	`, table, colA, colB)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, id, id, id, k)
	if err != nil {
		return nil, fmt.Errorf("query most similar: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanPairs(rows)
}

// SimilarityBetween returns the stored similarity for the unordered pair
// (a, b). Order is canonicalized here so callers never need to know the
// invariant.
func (db *DB) SimilarityBetween(ctx context.Context, kind recommend.SimilarityKind, a, b int64) (float64, error) {
	table, colA, colB, err := similarityTable(kind)
	if err != nil {
		return 0, err
	}
	if a > b {
		a, b = b, a
	}

	query := fmt.Sprintf("SELECT similarity FROM %s WHERE %s = ? AND %s = ?", table, colA, colB)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var similarity float64
	if err := db.conn.QueryRowContext(ctx, query, a, b).Scan(&similarity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, recommend.ErrNotFound
		}
		return 0, fmt.Errorf("query similarity between (%d, %d): %w", a, b, err)
	}
	return similarity, nil
}

// PairsAboveThreshold returns every pair in the matrix with similarity at
// or above the threshold, ordered by similarity descending, then ids
// ascending.
func (db *DB) PairsAboveThreshold(ctx context.Context, kind recommend.SimilarityKind, threshold float64) ([]recommend.SimilarityPair, error) {
	table, colA, colB, err := similarityTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %[2]s, %[3]s, similarity, updated_at
		FROM %[1]s
		WHERE similarity >= ?
		ORDER BY similarity DESC, %[2]s ASC, %[3]s ASC
	`, table, colA, colB)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query pairs above threshold: %w", err)
	}
	defer closeWithLog(rows, "rows")

	return scanPairs(rows)
}

// PurgeOlderThan removes pairs not refreshed since the cutoff and returns
// the number removed.
func (db *DB) PurgeOlderThan(ctx context.Context, kind recommend.SimilarityKind, cutoff time.Time) (int64, error) {
	table, _, _, err := similarityTable(kind)
	if err != nil {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE updated_at < ?", table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging %s: %w", table, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged rows: %w", err)
	}
	return removed, nil
}

func scanPairs(rows *sql.Rows) ([]recommend.SimilarityPair, error) {
	var pairs []recommend.SimilarityPair
	for rows.Next() {
		var p recommend.SimilarityPair
		if err := rows.Scan(&p.IDA, &p.IDB, &p.Similarity, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan similarity pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity pairs: %w", err)
	}
	return pairs, nil
}
