// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"fmt"
	"time"
)

// Config holds the tunables of the recommendation core. Zero values are
// replaced with defaults by DefaultConfig; constructors call Validate.
type Config struct {
	// SimilarUserCount is K, the number of most-similar neighbors
	// consulted by the collaborative filtering sources.
	// Default: 10
	SimilarUserCount int

	// SimilarityThreshold is the minimum similarity a neighbor must have
	// to contribute candidates.
	// Default: 0.1
	SimilarityThreshold float64

	// Damping scales neighbor similarity into a candidate score for
	// user-based CF.
	// Default: 0.8
	Damping float64

	// RecentLimit is how many recent behavior events are examined when
	// collecting a user's anchors and neighbor interests.
	// Default: 100
	RecentLimit int

	// ItemAnchorLimit caps the number of recently interacted products used
	// as anchors by item-based CF.
	// Default: 10
	ItemAnchorLimit int

	// PurchaseVectorCap caps the distinct products in a user interest
	// vector, keeping pairwise cost bounded for heavy users.
	// Default: 50
	PurchaseVectorCap int

	// ProductVectorCap caps the distinct users in a product interest
	// vector.
	// Default: 200
	ProductVectorCap int

	// PopularityWindow bounds how far back the popularity source counts
	// interactions.
	// Default: 720h (30 days)
	PopularityWindow time.Duration

	// NewProductWindow bounds how old a product may be for the new-product
	// source.
	// Default: 168h (7 days)
	NewProductWindow time.Duration

	// ResultTTL is how long generated recommendations stay valid.
	// Default: 168h (7 days)
	ResultTTL time.Duration

	// BatchSize is the number of similarity pairs buffered before a flush
	// to the store during matrix builds.
	// Default: 500
	BatchSize int

	// ActiveWindow bounds which users and products participate in matrix
	// builds; entities with no behavior inside it are skipped.
	// Default: 720h (30 days)
	ActiveWindow time.Duration

	// SimilarityRetention is how long stale similarity pairs are kept
	// before the cleanup sweep purges them.
	// Default: 336h (14 days)
	SimilarityRetention time.Duration
}

// DefaultConfig returns the default recommendation configuration.
func DefaultConfig() Config {
	return Config{
		SimilarUserCount:    10,
		SimilarityThreshold: 0.1,
		Damping:             0.8,
		RecentLimit:         100,
		ItemAnchorLimit:     10,
		PurchaseVectorCap:   50,
		ProductVectorCap:    200,
		PopularityWindow:    30 * 24 * time.Hour,
		NewProductWindow:    7 * 24 * time.Hour,
		ResultTTL:           7 * 24 * time.Hour,
		BatchSize:           500,
		ActiveWindow:        30 * 24 * time.Hour,
		SimilarityRetention: 14 * 24 * time.Hour,
	}
}

// Validate checks the configuration for values that would break generation.
func (c Config) Validate() error {
	if c.SimilarUserCount <= 0 {
		return fmt.Errorf("similar user count must be positive, got %d", c.SimilarUserCount)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in [0,1], got %g", c.SimilarityThreshold)
	}
	if c.Damping <= 0 || c.Damping > 1 {
		return fmt.Errorf("damping must be in (0,1], got %g", c.Damping)
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("recent limit must be positive, got %d", c.RecentLimit)
	}
	if c.ItemAnchorLimit <= 0 {
		return fmt.Errorf("item anchor limit must be positive, got %d", c.ItemAnchorLimit)
	}
	if c.PurchaseVectorCap <= 0 {
		return fmt.Errorf("purchase vector cap must be positive, got %d", c.PurchaseVectorCap)
	}
	if c.ProductVectorCap <= 0 {
		return fmt.Errorf("product vector cap must be positive, got %d", c.ProductVectorCap)
	}
	if c.PopularityWindow <= 0 {
		return fmt.Errorf("popularity window must be positive, got %v", c.PopularityWindow)
	}
	if c.NewProductWindow <= 0 {
		return fmt.Errorf("new product window must be positive, got %v", c.NewProductWindow)
	}
	if c.ResultTTL <= 0 {
		return fmt.Errorf("result ttl must be positive, got %v", c.ResultTTL)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.ActiveWindow <= 0 {
		return fmt.Errorf("active window must be positive, got %v", c.ActiveWindow)
	}
	if c.SimilarityRetention <= 0 {
		return fmt.Errorf("similarity retention must be positive, got %v", c.SimilarityRetention)
	}
	return nil
}
