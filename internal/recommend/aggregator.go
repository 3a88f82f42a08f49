// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sjl1805/mall-recommend/internal/metrics"
)

// personalizedAlgorithms is the set of algorithm types replaced wholesale by
// a personalized regeneration. Fallback popularity rows are outside it: they
// are upserted alongside but age out through expiry instead.
var personalizedAlgorithms = []AlgorithmType{AlgorithmUserCF, AlgorithmItemCF, AlgorithmHybrid}

// Aggregator composes candidate sources into final recommendation sets and
// owns the read paths over them. Personalized sources are tried in order,
// the popularity source fills any shortfall, and the assembled set replaces
// the user's previous personalized results atomically.
type Aggregator struct {
	store    RecommendationStore
	catalog  Catalog
	cache    ResultCache
	personal []CandidateSource
	fallback CandidateSource
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewAggregator creates a recommendation aggregator. The personal sources
// are tried in the given order; fallback fills whatever they leave short.
// A nil cache disables read caching.
func NewAggregator(store RecommendationStore, catalog Catalog, cache ResultCache, personal []CandidateSource, fallback CandidateSource, cfg Config, logger zerolog.Logger) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("recommendation store is required")
	}
	if len(personal) == 0 {
		return nil, fmt.Errorf("at least one personal candidate source is required")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback candidate source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cache == nil {
		cache = NopCache{}
	}

	return &Aggregator{
		store:    store,
		catalog:  catalog,
		cache:    cache,
		personal: personal,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// GeneratePersonalized rebuilds the user's personalized recommendation set.
// A nil return means the set was regenerated and persisted; errors are
// reserved for invalid input and infrastructure failure. Sources that yield
// nothing are an expected state handled by falling through the chain, never
// an error.
func (a *Aggregator) GeneratePersonalized(ctx context.Context, userID int64, limit int) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if limit <= 0 {
		return ErrInvalidLimit
	}

	start := a.now()
	candidates := a.collect(ctx, userID, limit)
	candidates = a.filterOffShelf(ctx, candidates)

	// Fill any shortfall from popularity. Fallback candidates may repeat
	// products the user already interacted with; only duplicates against
	// the personalized set are dropped.
	if len(candidates) < limit {
		seen := make(map[int64]struct{}, len(candidates))
		for _, c := range candidates {
			seen[c.ProductID] = struct{}{}
		}
		fill, err := a.fallback.Candidates(ctx, userID, limit)
		if err != nil {
			metrics.SourceErrors.WithLabelValues(a.fallback.Name()).Inc()
			a.logger.Warn().Err(err).Int64("user_id", userID).Msg("fallback source failed, proceeding with partial set")
		}
		for _, c := range fill {
			if len(candidates) >= limit {
				break
			}
			if _, dup := seen[c.ProductID]; dup {
				continue
			}
			seen[c.ProductID] = struct{}{}
			candidates = append(candidates, c)
		}
	}

	now := a.now()
	results := make([]RecommendationResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, RecommendationResult{
			ID:         a.newID(),
			UserID:     userID,
			ProductID:  c.ProductID,
			Score:      c.Score,
			Algorithm:  c.Source,
			ExpireTime: now.Add(a.cfg.ResultTTL),
			CreatedAt:  now,
		})
	}

	if err := a.store.ReplaceForUser(ctx, userID, personalizedAlgorithms, results); err != nil {
		return fmt.Errorf("persisting recommendations for user %d: %w", userID, err)
	}

	if err := a.cache.Invalidate(ctx, userID); err != nil {
		a.logger.Warn().Err(err).Int64("user_id", userID).Msg("cache invalidation failed")
	}

	metrics.GenerationDuration.Observe(a.now().Sub(start).Seconds())
	a.logger.Info().
		Int64("user_id", userID).
		Int("results", len(results)).
		Msg("personalized recommendations regenerated")

	return nil
}

// collect runs the personal sources in order, deduplicating by product id
// with the earlier source winning, until limit candidates are gathered. A
// failing source is logged and skipped so the chain can still produce a
// partial set.
func (a *Aggregator) collect(ctx context.Context, userID int64, limit int) []Candidate {
	seen := make(map[int64]struct{}, limit)
	out := make([]Candidate, 0, limit)

	for _, src := range a.personal {
		if len(out) >= limit {
			break
		}
		batch, err := src.Candidates(ctx, userID, limit)
		if err != nil {
			metrics.SourceErrors.WithLabelValues(src.Name()).Inc()
			a.logger.Warn().Err(err).Str("source", src.Name()).Int64("user_id", userID).Msg("candidate source failed, trying next")
			continue
		}
		metrics.CandidatesProduced.WithLabelValues(src.Name()).Add(float64(len(batch)))

		for _, c := range batch {
			if len(out) >= limit {
				break
			}
			if _, dup := seen[c.ProductID]; dup {
				continue
			}
			seen[c.ProductID] = struct{}{}
			out = append(out, c)
		}
	}

	return out
}

// filterOffShelf drops candidates the catalog reports as off shelf or does
// not know at all. When the catalog cannot answer (service down, circuit
// open) the candidate is kept: a possibly withdrawn product in a
// recommendation list is preferable to an empty list every time the catalog
// blips. A definitive ErrNotFound is an answer, not an outage, and drops
// the candidate.
func (a *Aggregator) filterOffShelf(ctx context.Context, candidates []Candidate) []Candidate {
	if a.catalog == nil {
		return candidates
	}

	kept := candidates[:0]
	for _, c := range candidates {
		status, err := a.catalog.Status(ctx, c.ProductID)
		if errors.Is(err, ErrNotFound) {
			a.logger.Debug().Int64("product_id", c.ProductID).Msg("product unknown to catalog, dropping candidate")
			continue
		}
		if err != nil {
			a.logger.Debug().Err(err).Int64("product_id", c.ProductID).Msg("catalog status unavailable, keeping candidate")
			kept = append(kept, c)
			continue
		}
		if status == StatusOffShelf {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// CleanExpired removes every recommendation whose expire time has passed and
// returns the number removed. Safe to run concurrently with generation:
// regeneration only writes rows with future expiry.
func (a *Aggregator) CleanExpired(ctx context.Context) (int64, error) {
	removed, err := a.store.DeleteExpired(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired recommendations: %w", err)
	}

	metrics.ResultsExpired.Add(float64(removed))
	if removed > 0 {
		a.logger.Info().Int64("removed", removed).Msg("expired recommendations cleaned")
	}
	return removed, nil
}

// GetValidRecommendations returns the user's unexpired recommendations,
// highest score first, at most limit entries. Absence of personalization is
// an empty list, never an error. Reads go through the cache when one is
// configured.
func (a *Aggregator) GetValidRecommendations(ctx context.Context, userID int64, limit int) ([]RecommendationResult, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	cached, hit, err := a.cache.Get(ctx, userID, limit)
	if err != nil {
		a.logger.Debug().Err(err).Int64("user_id", userID).Msg("cache read failed, falling through to store")
	} else if hit {
		metrics.CacheHits.Inc()
		// Cache TTL and row expiry run on independent clocks; an entry
		// cached while valid can carry rows that have since expired.
		now := a.now()
		valid := make([]RecommendationResult, 0, len(cached))
		for _, r := range cached {
			if !r.Expired(now) {
				valid = append(valid, r)
			}
		}
		return valid, nil
	}
	metrics.CacheMisses.Inc()

	results, err := a.store.ValidForUser(ctx, userID, a.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("loading recommendations for user %d: %w", userID, err)
	}

	if err := a.cache.Set(ctx, userID, limit, results); err != nil {
		a.logger.Debug().Err(err).Int64("user_id", userID).Msg("cache write failed")
	}
	return results, nil
}

// GetRecommendationsByAlgorithm returns the user's unexpired recommendations
// produced by one algorithm, highest score first.
func (a *Aggregator) GetRecommendationsByAlgorithm(ctx context.Context, userID int64, algorithm AlgorithmType, limit int) ([]RecommendationResult, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if !algorithm.Valid() {
		return nil, fmt.Errorf("recommend: invalid algorithm %d", algorithm)
	}

	results, err := a.store.ValidForUserByAlgorithm(ctx, userID, algorithm, a.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("loading %s recommendations for user %d: %w", algorithm, userID, err)
	}
	return results, nil
}

// CheckRecommended reports whether an unexpired recommendation of the
// product exists for the user, returning it when present and ErrNotFound
// otherwise.
func (a *Aggregator) CheckRecommended(ctx context.Context, userID, productID int64) (RecommendationResult, error) {
	if userID <= 0 {
		return RecommendationResult{}, ErrInvalidUserID
	}
	if productID <= 0 {
		return RecommendationResult{}, fmt.Errorf("recommend: product id must be positive")
	}

	result, err := a.store.Find(ctx, userID, productID, a.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RecommendationResult{}, ErrNotFound
		}
		return RecommendationResult{}, fmt.Errorf("looking up recommendation: %w", err)
	}
	return result, nil
}
