// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// UserCFSource generates candidates by user-based collaborative filtering:
// find the K users most similar to the target, then surface the products
// those neighbors recently viewed or favorited that the target has not
// touched.
type UserCFSource struct {
	behaviors  BehaviorStore
	similarity SimilarityStore
	cfg        Config
	logger     zerolog.Logger
}

var _ CandidateSource = (*UserCFSource)(nil)

// NewUserCFSource creates a user-based CF candidate source.
func NewUserCFSource(behaviors BehaviorStore, similarity SimilarityStore, cfg Config, logger zerolog.Logger) *UserCFSource {
	return &UserCFSource{
		behaviors:  behaviors,
		similarity: similarity,
		cfg:        cfg,
		logger:     logger.With().Str("component", "source-usercf").Logger(),
	}
}

// Name implements CandidateSource.
func (s *UserCFSource) Name() string { return "usercf" }

// Algorithm implements CandidateSource.
func (s *UserCFSource) Algorithm() AlgorithmType { return AlgorithmUserCF }

// Candidates implements CandidateSource. Neighbors are visited in
// similarity order; each neighbor's recent views and favorites become
// candidates scored similarity times the damping factor, so products from
// closer neighbors rank higher. A product suggested by several neighbors
// keeps its first (highest) score. The target's own interacted products are
// excluded.
func (s *UserCFSource) Candidates(ctx context.Context, userID int64, limit int) ([]Candidate, error) {
	neighbors, err := s.similarity.MostSimilar(ctx, KindUser, userID, s.cfg.SimilarUserCount)
	if err != nil {
		return nil, fmt.Errorf("finding similar users: %w", err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	interacted, err := s.behaviors.InteractedProductIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading interacted products: %w", err)
	}

	seen := make(map[int64]struct{})
	candidates := make([]Candidate, 0, limit)

	for _, pair := range neighbors {
		if pair.Similarity < s.cfg.SimilarityThreshold {
			continue
		}
		neighborID, ok := pair.Partner(userID)
		if !ok {
			continue
		}

		events, err := s.behaviors.RecentInteractions(ctx, neighborID, s.cfg.RecentLimit)
		if err != nil {
			s.logger.Warn().Err(err).Int64("neighbor_id", neighborID).Msg("failed to load neighbor behavior, skipping")
			continue
		}

		for _, ev := range events {
			if ev.Type != BehaviorView && ev.Type != BehaviorFavorite {
				continue
			}
			if _, own := interacted[ev.ProductID]; own {
				continue
			}
			if _, dup := seen[ev.ProductID]; dup {
				continue
			}
			seen[ev.ProductID] = struct{}{}

			candidates = append(candidates, Candidate{
				ProductID: ev.ProductID,
				Score:     Round4(pair.Similarity * s.cfg.Damping),
				Source:    AlgorithmUserCF,
			})
			if len(candidates) >= limit {
				return candidates, nil
			}
		}
	}

	return candidates, nil
}
