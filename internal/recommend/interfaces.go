// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"time"
)

// BehaviorStore provides read access to recorded user behavior. The
// database layer implements it; tests substitute in-memory fakes.
type BehaviorStore interface {
	// RecentInteractions returns a user's most recent behavior events,
	// newest first, at most limit entries.
	RecentInteractions(ctx context.Context, userID int64, limit int) ([]BehaviorEvent, error)

	// PurchaseVector returns the user's interest vector over products,
	// built from weighted behavior and capped at maxItems distinct
	// products, preferring the most recently touched ones.
	PurchaseVector(ctx context.Context, userID int64, maxItems int) (SparseVector, error)

	// ProductVector returns a product's interest vector over users,
	// capped at maxUsers distinct users.
	ProductVector(ctx context.Context, productID int64, maxUsers int) (SparseVector, error)

	// ActiveUserIDs returns ids of users with behavior since the given time.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)

	// ActiveProductIDs returns ids of products with behavior since the
	// given time.
	ActiveProductIDs(ctx context.Context, since time.Time) ([]int64, error)

	// InteractionCounts returns, per product, the weighted interaction
	// total accumulated since the given time.
	InteractionCounts(ctx context.Context, since time.Time) (map[int64]float64, error)

	// InteractedProductIDs returns every product id the user has ever
	// interacted with.
	InteractedProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// SimilarityStore persists and queries the user and product similarity
// matrices.
type SimilarityStore interface {
	// UpsertPairs inserts or updates a batch of canonical pairs in the
	// matrix selected by kind.
	UpsertPairs(ctx context.Context, kind SimilarityKind, pairs []SimilarityPair) error

	// MostSimilar returns up to k pairs involving id, ordered by
	// similarity descending, partner id ascending on ties.
	MostSimilar(ctx context.Context, kind SimilarityKind, id int64, k int) ([]SimilarityPair, error)

	// SimilarityBetween returns the stored similarity for the unordered
	// pair (a, b), or ErrNotFound when no pair exists.
	SimilarityBetween(ctx context.Context, kind SimilarityKind, a, b int64) (float64, error)

	// PairsAboveThreshold returns every pair in the matrix whose
	// similarity is at least the threshold, ordered by similarity
	// descending, then ids ascending.
	PairsAboveThreshold(ctx context.Context, kind SimilarityKind, threshold float64) ([]SimilarityPair, error)

	// PurgeOlderThan removes pairs not refreshed since the cutoff and
	// returns the number removed.
	PurgeOlderThan(ctx context.Context, kind SimilarityKind, cutoff time.Time) (int64, error)
}

// RecommendationStore persists and queries recommendation results.
type RecommendationStore interface {
	// UpsertResults inserts or updates results keyed by
	// (user, product, algorithm).
	UpsertResults(ctx context.Context, results []RecommendationResult) error

	// ReplaceForUser atomically replaces the user's results for the given
	// algorithms with the provided set. Readers never observe an empty
	// window between removal and insertion.
	ReplaceForUser(ctx context.Context, userID int64, algorithms []AlgorithmType, results []RecommendationResult) error

	// DeleteByUserAndAlgorithms removes all of the user's results for the
	// given algorithms.
	DeleteByUserAndAlgorithms(ctx context.Context, userID int64, algorithms []AlgorithmType) error

	// ValidForUser returns unexpired results for the user ordered by score
	// descending, at most limit entries.
	ValidForUser(ctx context.Context, userID int64, now time.Time, limit int) ([]RecommendationResult, error)

	// ValidForUserByAlgorithm is ValidForUser restricted to one algorithm.
	ValidForUserByAlgorithm(ctx context.Context, userID int64, algorithm AlgorithmType, now time.Time, limit int) ([]RecommendationResult, error)

	// Find returns the unexpired result for (user, product) regardless of
	// algorithm, or ErrNotFound.
	Find(ctx context.Context, userID, productID int64, now time.Time) (RecommendationResult, error)

	// DeleteExpired removes results whose expire time is at or before now
	// and returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Catalog exposes the product catalog facts the engine needs. The production
// implementation calls the catalog service over HTTP; the engine treats it
// as unreliable and degrades rather than fails when it errors.
type Catalog interface {
	// Status returns the product's shelf status, or ErrNotFound when the
	// product is unknown to the catalog.
	Status(ctx context.Context, productID int64) (ProductStatus, error)

	// CreatedAt returns the product's creation time.
	CreatedAt(ctx context.Context, productID int64) (time.Time, error)

	// RecentlyCreated returns products created since the given time,
	// newest first, at most limit entries.
	RecentlyCreated(ctx context.Context, since time.Time, limit int) ([]CatalogProduct, error)
}

// CatalogProduct is the slice of catalog product data the engine consumes.
type CatalogProduct struct {
	ID        int64
	Status    ProductStatus
	CreatedAt time.Time
}

// CandidateSource produces scored product candidates for a user. Each
// generation strategy implements it, and the aggregator composes sources
// into a fallback chain.
type CandidateSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Algorithm returns the algorithm type stamped on this source's
	// candidates.
	Algorithm() AlgorithmType

	// Candidates returns up to limit scored candidates for the user.
	// An empty slice with a nil error means the source has nothing to
	// offer for this user.
	Candidates(ctx context.Context, userID int64, limit int) ([]Candidate, error)
}

// ResultCache caches serialized recommendation reads. A nil-safe nop
// implementation is used when no cache is configured.
type ResultCache interface {
	// Get returns the cached results for (user, limit) and whether the
	// key was present.
	Get(ctx context.Context, userID int64, limit int) ([]RecommendationResult, bool, error)

	// Set stores results for (user, limit) with the cache's TTL.
	Set(ctx context.Context, userID int64, limit int, results []RecommendationResult) error

	// Invalidate drops every cached entry for the user.
	Invalidate(ctx context.Context, userID int64) error
}

// NopCache is a ResultCache that caches nothing.
type NopCache struct{}

var _ ResultCache = NopCache{}

// Get always reports a miss.
func (NopCache) Get(context.Context, int64, int) ([]RecommendationResult, bool, error) {
	return nil, false, nil
}

// Set discards the entry.
func (NopCache) Set(context.Context, int64, int, []RecommendationResult) error { return nil }

// Invalidate does nothing.
func (NopCache) Invalidate(context.Context, int64) error { return nil }
