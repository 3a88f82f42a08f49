// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package recommend implements the recommendation core: pairwise similarity
// computation over user behavior, candidate generation, and ranked,
// time-bounded recommendation sets.
//
// # Components
//
//   - MatrixBuilder computes user-user and product-product cosine similarity
//     from behavior vectors and persists canonicalized pairs in batches.
//   - CandidateSource implementations (user CF, item CF, popularity, new
//     product) each produce scored product candidates for a user.
//   - Aggregator runs sources in a fixed fallback order, deduplicates,
//     attaches expiry, and persists final recommendation records. It also owns
//     the expiry sweep and the read paths used by presentation collaborators.
//
// # Data Flow
//
//	behavior store -> MatrixBuilder -> similarity store
//	similarity store + behavior store -> sources -> Aggregator -> result store
//
// Matrix building and recommendation generation are batch jobs: long running,
// cancellable through their context, never invoked on the request path. The
// read operations are cheap indexed lookups and are request-path safe.
//
// The package has no dependency on the database layer; storage is reached
// through the BehaviorStore, SimilarityStore, RecommendationStore and Catalog
// interfaces, which keeps the core testable against in-memory fakes.
package recommend
