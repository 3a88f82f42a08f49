// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// PopularitySource generates candidates from aggregate interaction volume
// inside a sliding window. It needs nothing about the target user, which
// makes it the cold-start fallback: it works for brand new users and fills
// whatever the personalized sources could not.
type PopularitySource struct {
	behaviors BehaviorStore
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

var _ CandidateSource = (*PopularitySource)(nil)

// NewPopularitySource creates a popularity candidate source.
func NewPopularitySource(behaviors BehaviorStore, cfg Config, logger zerolog.Logger) *PopularitySource {
	return &PopularitySource{
		behaviors: behaviors,
		cfg:       cfg,
		logger:    logger.With().Str("component", "source-popularity").Logger(),
		now:       time.Now,
	}
}

// Name implements CandidateSource.
func (s *PopularitySource) Name() string { return "popularity" }

// Algorithm implements CandidateSource.
func (s *PopularitySource) Algorithm() AlgorithmType { return AlgorithmPopular }

// Candidates implements CandidateSource. Scores are weighted interaction
// totals normalized by the window maximum, so the most popular product
// scores 1.0. Ties break toward the smaller product id for deterministic
// output. Unlike the personalized sources it does not exclude products the
// user has interacted with; popular items stay recommendable.
func (s *PopularitySource) Candidates(ctx context.Context, _ int64, limit int) ([]Candidate, error) {
	since := s.now().Add(-s.cfg.PopularityWindow)

	counts, err := s.behaviors.InteractionCounts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("loading interaction counts: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	var max float64
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	if max <= 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(counts))
	for productID, c := range counts {
		candidates = append(candidates, Candidate{
			ProductID: productID,
			Score:     Round4(c / max),
			Source:    AlgorithmPopular,
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
