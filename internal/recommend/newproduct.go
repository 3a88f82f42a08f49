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
)

// NewProductSource generates candidates from products recently added to the
// catalog, giving fresh inventory exposure before it accumulates enough
// behavior to surface through collaborative filtering.
type NewProductSource struct {
	behaviors BehaviorStore
	catalog   Catalog
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

var _ CandidateSource = (*NewProductSource)(nil)

// NewNewProductSource creates a new-product candidate source.
func NewNewProductSource(behaviors BehaviorStore, catalog Catalog, cfg Config, logger zerolog.Logger) *NewProductSource {
	return &NewProductSource{
		behaviors: behaviors,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("component", "source-newproduct").Logger(),
		now:       time.Now,
	}
}

// Name implements CandidateSource.
func (s *NewProductSource) Name() string { return "newproduct" }

// Algorithm implements CandidateSource.
func (s *NewProductSource) Algorithm() AlgorithmType { return AlgorithmNewProduct }

// Candidates implements CandidateSource. Scores decay linearly with product
// age: a product created just now scores 1.0, one created at the window edge
// approaches 0. Off-shelf products and products the user already interacted
// with are excluded.
func (s *NewProductSource) Candidates(ctx context.Context, userID int64, limit int) ([]Candidate, error) {
	now := s.now()
	since := now.Add(-s.cfg.NewProductWindow)

	products, err := s.catalog.RecentlyCreated(ctx, since, limit*2)
	if err != nil {
		return nil, fmt.Errorf("loading recent products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	interacted, err := s.behaviors.InteractedProductIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading interacted products: %w", err)
	}

	window := s.cfg.NewProductWindow.Seconds()
	candidates := make([]Candidate, 0, limit)

	for _, p := range products {
		if p.Status != StatusOnShelf {
			continue
		}
		if _, own := interacted[p.ID]; own {
			continue
		}

		age := now.Sub(p.CreatedAt).Seconds()
		if age < 0 {
			age = 0
		}
		score := 1 - age/window
		if score <= 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			ProductID: p.ID,
			Score:     Round4(score),
			Source:    AlgorithmNewProduct,
		})
		if len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}
