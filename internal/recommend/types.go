// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the aggregator read and write paths.
var (
	// ErrInvalidUserID is returned when a caller passes a non-positive user id.
	ErrInvalidUserID = errors.New("recommend: user id must be positive")

	// ErrInvalidLimit is returned when a caller passes a non-positive limit.
	ErrInvalidLimit = errors.New("recommend: limit must be positive")

	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("recommend: not found")
)

// BehaviorType identifies a kind of user interaction with a product.
type BehaviorType int

// Behavior types, in ascending id order. The numeric values are part of the
// stored representation and must not be reordered.
const (
	BehaviorView BehaviorType = iota + 1
	BehaviorClick
	BehaviorCartAdd
	BehaviorFavorite
	BehaviorSearch
	BehaviorRating
	BehaviorReview
)

// String returns the canonical name of the behavior type.
func (b BehaviorType) String() string {
	switch b {
	case BehaviorView:
		return "VIEW"
	case BehaviorClick:
		return "CLICK"
	case BehaviorCartAdd:
		return "CART_ADD"
	case BehaviorFavorite:
		return "FAVORITE"
	case BehaviorSearch:
		return "SEARCH"
	case BehaviorRating:
		return "RATING"
	case BehaviorReview:
		return "REVIEW"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(b))
	}
}

// Weight returns the interest weight contributed by one interaction of this
// type. Stronger purchase intent carries a higher weight.
func (b BehaviorType) Weight() float64 {
	switch b {
	case BehaviorView:
		return 1.0
	case BehaviorClick:
		return 1.5
	case BehaviorCartAdd:
		return 3.0
	case BehaviorFavorite:
		return 4.0
	case BehaviorSearch:
		return 0.5
	case BehaviorRating:
		return 2.0
	case BehaviorReview:
		return 2.5
	default:
		return 0
	}
}

// Valid reports whether b is a known behavior type.
func (b BehaviorType) Valid() bool {
	return b >= BehaviorView && b <= BehaviorReview
}

// ParseBehaviorType converts a canonical behavior name to its type.
func ParseBehaviorType(s string) (BehaviorType, error) {
	switch s {
	case "VIEW":
		return BehaviorView, nil
	case "CLICK":
		return BehaviorClick, nil
	case "CART_ADD":
		return BehaviorCartAdd, nil
	case "FAVORITE":
		return BehaviorFavorite, nil
	case "SEARCH":
		return BehaviorSearch, nil
	case "RATING":
		return BehaviorRating, nil
	case "REVIEW":
		return BehaviorReview, nil
	default:
		return 0, fmt.Errorf("recommend: unknown behavior type %q", s)
	}
}

// BehaviorEvent is a single recorded interaction between a user and a
// product.
type BehaviorEvent struct {
	UserID     int64
	ProductID  int64
	CategoryID int64
	Type       BehaviorType
	// Quantity scales the weight for quantity-bearing interactions such as
	// cart adds. Zero is treated as 1.
	Quantity  float64
	Timestamp time.Time
}

// WeightedValue returns the event's contribution to an interest vector.
func (e BehaviorEvent) WeightedValue() float64 {
	q := e.Quantity
	if q <= 0 {
		q = 1
	}
	return e.Type.Weight() * q
}

// SparseVector maps a dimension id (product id for user vectors, user id for
// product vectors) to an accumulated weight. Absent keys are zero.
type SparseVector = map[int64]float64

// SimilarityKind selects which similarity matrix an operation addresses.
type SimilarityKind int

const (
	// KindUser addresses the user-user similarity matrix.
	KindUser SimilarityKind = iota + 1
	// KindProduct addresses the product-product similarity matrix.
	KindProduct
)

// String returns the canonical name of the similarity kind.
func (k SimilarityKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindProduct:
		return "product"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// SimilarityPair is one stored entry of a similarity matrix. Pairs are
// canonical: IDA < IDB always holds, so each unordered pair has exactly one
// representation.
type SimilarityPair struct {
	IDA        int64
	IDB        int64
	Similarity float64
	UpdatedAt  time.Time
}

// NewSimilarityPair builds a canonical pair from two entity ids and a raw
// similarity score. The ids are ordered so the smaller one is IDA, and the
// score is clamped to [0, 1] and rounded to four decimals. This constructor
// is the only way pairs should be created; it guarantees that (a, b) and
// (b, a) produce the same record.
func NewSimilarityPair(a, b int64, similarity float64) SimilarityPair {
	if a > b {
		a, b = b, a
	}
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return SimilarityPair{
		IDA:        a,
		IDB:        b,
		Similarity: Round4(similarity),
	}
}

// Partner returns the other member of the pair relative to id. The second
// return value is false when id is not a member.
func (p SimilarityPair) Partner(id int64) (int64, bool) {
	switch id {
	case p.IDA:
		return p.IDB, true
	case p.IDB:
		return p.IDA, true
	default:
		return 0, false
	}
}

// AlgorithmType identifies which strategy produced a recommendation.
type AlgorithmType int

// Algorithm types. The numeric values are part of the stored representation
// and must not be reordered.
const (
	AlgorithmUserCF     AlgorithmType = 1
	AlgorithmItemCF     AlgorithmType = 2
	AlgorithmHybrid     AlgorithmType = 3
	AlgorithmPopular    AlgorithmType = 4
	AlgorithmNewProduct AlgorithmType = 5
)

// String returns the canonical name of the algorithm type.
func (a AlgorithmType) String() string {
	switch a {
	case AlgorithmUserCF:
		return "USER_CF"
	case AlgorithmItemCF:
		return "ITEM_CF"
	case AlgorithmHybrid:
		return "HYBRID"
	case AlgorithmPopular:
		return "POPULAR"
	case AlgorithmNewProduct:
		return "NEW_PRODUCT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(a))
	}
}

// ParseAlgorithm converts a canonical algorithm name to its type.
func ParseAlgorithm(s string) (AlgorithmType, error) {
	switch s {
	case "USER_CF":
		return AlgorithmUserCF, nil
	case "ITEM_CF":
		return AlgorithmItemCF, nil
	case "HYBRID":
		return AlgorithmHybrid, nil
	case "POPULAR":
		return AlgorithmPopular, nil
	case "NEW_PRODUCT":
		return AlgorithmNewProduct, nil
	default:
		return 0, fmt.Errorf("recommend: unknown algorithm %q", s)
	}
}

// Valid reports whether a is a known algorithm type.
func (a AlgorithmType) Valid() bool {
	return a >= AlgorithmUserCF && a <= AlgorithmNewProduct
}

// RecommendationResult is one persisted, ranked recommendation for a user.
type RecommendationResult struct {
	ID        string
	UserID    int64
	ProductID int64
	Score     float64
	Algorithm AlgorithmType
	// ExpireTime bounds the record's validity; read paths only return
	// records whose ExpireTime is in the future.
	ExpireTime time.Time
	CreatedAt  time.Time
}

// Expired reports whether the result is no longer valid at the given time.
func (r RecommendationResult) Expired(now time.Time) bool {
	return !r.ExpireTime.After(now)
}

// Candidate is a scored product produced by a CandidateSource, before
// aggregation, filtering and persistence.
type Candidate struct {
	ProductID int64
	Score     float64
	Source    AlgorithmType
}

// ProductStatus describes a product's shelf state in the catalog.
type ProductStatus int

const (
	// StatusOnShelf marks a product available for sale.
	StatusOnShelf ProductStatus = 1
	// StatusOffShelf marks a product withdrawn from sale.
	StatusOffShelf ProductStatus = 0
)
