// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sjl1805/mall-recommend/internal/metrics"
)

// MatrixBuilder computes pairwise cosine similarity across the active users
// or products and persists the results in batches. Builds are full
// recomputations: every qualifying pair is recalculated and upserted, so a
// rerun converges to the same matrix.
type MatrixBuilder struct {
	behaviors  BehaviorStore
	similarity SimilarityStore
	cfg        Config
	logger     zerolog.Logger
	now        func() time.Time
}

// NewMatrixBuilder creates a matrix builder.
func NewMatrixBuilder(behaviors BehaviorStore, similarity SimilarityStore, cfg Config, logger zerolog.Logger) (*MatrixBuilder, error) {
	if behaviors == nil {
		return nil, fmt.Errorf("behavior store is required")
	}
	if similarity == nil {
		return nil, fmt.Errorf("similarity store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &MatrixBuilder{
		behaviors:  behaviors,
		similarity: similarity,
		cfg:        cfg,
		logger:     logger.With().Str("component", "matrix-builder").Logger(),
		now:        time.Now,
	}, nil
}

// BuildUserMatrix recomputes the user-user similarity matrix over users
// active inside the configured window. It returns the number of pairs
// successfully persisted. An empty active set is not an error; the build
// simply processes zero pairs.
func (b *MatrixBuilder) BuildUserMatrix(ctx context.Context) (int, error) {
	since := b.now().Add(-b.cfg.ActiveWindow)

	ids, err := b.behaviors.ActiveUserIDs(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing active users: %w", err)
	}

	return b.build(ctx, KindUser, ids, func(ctx context.Context, id int64) (SparseVector, error) {
		return b.behaviors.PurchaseVector(ctx, id, b.cfg.PurchaseVectorCap)
	})
}

// BuildProductMatrix recomputes the product-product similarity matrix over
// products active inside the configured window.
func (b *MatrixBuilder) BuildProductMatrix(ctx context.Context) (int, error) {
	since := b.now().Add(-b.cfg.ActiveWindow)

	ids, err := b.behaviors.ActiveProductIDs(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing active products: %w", err)
	}

	return b.build(ctx, KindProduct, ids, func(ctx context.Context, id int64) (SparseVector, error) {
		return b.behaviors.ProductVector(ctx, id, b.cfg.ProductVectorCap)
	})
}

// build runs the pairwise computation for one matrix kind. Vectors are
// loaded once up front so each entity's behavior is fetched O(n) times
// rather than O(n^2). Entities whose vector cannot be loaded are logged and
// skipped; their pairs are simply absent from this build. Flush failures are
// likewise logged and skipped, and the failed batch is not counted.
func (b *MatrixBuilder) build(ctx context.Context, kind SimilarityKind, ids []int64, loadVector func(context.Context, int64) (SparseVector, error)) (int, error) {
	start := b.now()
	logger := b.logger.With().Str("matrix", kind.String()).Logger()

	if len(ids) == 0 {
		logger.Info().Msg("no active entities, skipping matrix build")
		return 0, nil
	}

	vectors := make(map[int64]SparseVector, len(ids))
	kept := ids[:0]
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("matrix build cancelled: %w", err)
		}
		vec, err := loadVector(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Int64("id", id).Msg("failed to load vector, skipping entity")
			continue
		}
		vectors[id] = vec
		kept = append(kept, id)
	}
	ids = kept

	processed := 0
	batch := make([]SimilarityPair, 0, b.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := b.similarity.UpsertPairs(ctx, kind, batch); err != nil {
			logger.Error().Err(err).Int("batch_size", len(batch)).Msg("failed to flush similarity batch")
		} else {
			processed += len(batch)
		}
		batch = batch[:0]
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := ctx.Err(); err != nil {
				return processed, fmt.Errorf("matrix build cancelled: %w", err)
			}

			pair := NewSimilarityPair(ids[i], ids[j], CosineSimilarity(vectors[ids[i]], vectors[ids[j]]))
			batch = append(batch, pair)
			if len(batch) >= b.cfg.BatchSize {
				flush()
			}
		}
	}
	flush()

	elapsed := b.now().Sub(start)
	metrics.MatrixBuildDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	metrics.MatrixPairsProcessed.WithLabelValues(kind.String()).Add(float64(processed))

	logger.Info().
		Int("entities", len(ids)).
		Int("pairs", processed).
		Dur("elapsed", elapsed).
		Msg("matrix build complete")

	return processed, nil
}
