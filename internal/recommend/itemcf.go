// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// ItemCFSource generates candidates by item-based collaborative filtering:
// take the user's most recently interacted products as anchors and surface
// the products most similar to each anchor.
type ItemCFSource struct {
	behaviors  BehaviorStore
	similarity SimilarityStore
	cfg        Config
	logger     zerolog.Logger
}

var _ CandidateSource = (*ItemCFSource)(nil)

// NewItemCFSource creates an item-based CF candidate source.
func NewItemCFSource(behaviors BehaviorStore, similarity SimilarityStore, cfg Config, logger zerolog.Logger) *ItemCFSource {
	return &ItemCFSource{
		behaviors:  behaviors,
		similarity: similarity,
		cfg:        cfg,
		logger:     logger.With().Str("component", "source-itemcf").Logger(),
	}
}

// Name implements CandidateSource.
func (s *ItemCFSource) Name() string { return "itemcf" }

// Algorithm implements CandidateSource.
func (s *ItemCFSource) Algorithm() AlgorithmType { return AlgorithmItemCF }

// Candidates implements CandidateSource. At most ItemAnchorLimit distinct
// recent products anchor the lookup. A product similar to several anchors
// gets the average of its per-anchor similarities, which favors products
// consistently close to the user's recent interests over one-off matches.
// Products the user already interacted with are excluded.
func (s *ItemCFSource) Candidates(ctx context.Context, userID int64, limit int) ([]Candidate, error) {
	events, err := s.behaviors.RecentInteractions(ctx, userID, s.cfg.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent behavior: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	anchors := make([]int64, 0, s.cfg.ItemAnchorLimit)
	anchorSet := make(map[int64]struct{}, s.cfg.ItemAnchorLimit)
	for _, ev := range events {
		if _, ok := anchorSet[ev.ProductID]; ok {
			continue
		}
		anchorSet[ev.ProductID] = struct{}{}
		anchors = append(anchors, ev.ProductID)
		if len(anchors) >= s.cfg.ItemAnchorLimit {
			break
		}
	}

	interacted, err := s.behaviors.InteractedProductIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading interacted products: %w", err)
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)

	for _, anchor := range anchors {
		pairs, err := s.similarity.MostSimilar(ctx, KindProduct, anchor, s.cfg.SimilarUserCount)
		if err != nil {
			s.logger.Warn().Err(err).Int64("anchor_id", anchor).Msg("failed to load similar products, skipping anchor")
			continue
		}
		for _, pair := range pairs {
			if pair.Similarity < s.cfg.SimilarityThreshold {
				continue
			}
			partner, ok := pair.Partner(anchor)
			if !ok {
				continue
			}
			if _, own := interacted[partner]; own {
				continue
			}
			sums[partner] += pair.Similarity
			counts[partner]++
		}
	}

	candidates := make([]Candidate, 0, len(sums))
	for productID, sum := range sums {
		candidates = append(candidates, Candidate{
			ProductID: productID,
			Score:     Round4(sum / float64(counts[productID])),
			Source:    AlgorithmItemCF,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ProductID < candidates[j].ProductID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}
