// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeBehaviorStore is an in-memory BehaviorStore for tests.
type fakeBehaviorStore struct {
	mu         sync.Mutex
	events     map[int64][]BehaviorEvent // keyed by user id
	vectorErrs map[int64]error           // per-entity vector load failures
	listErr    error
}

var _ BehaviorStore = (*fakeBehaviorStore)(nil)

func newFakeBehaviorStore() *fakeBehaviorStore {
	return &fakeBehaviorStore{
		events:     make(map[int64][]BehaviorEvent),
		vectorErrs: make(map[int64]error),
	}
}

func (f *fakeBehaviorStore) add(events ...BehaviorEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		f.events[ev.UserID] = append(f.events[ev.UserID], ev)
	}
}

func (f *fakeBehaviorStore) RecentInteractions(_ context.Context, userID int64, limit int) ([]BehaviorEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := append([]BehaviorEvent(nil), f.events[userID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (f *fakeBehaviorStore) PurchaseVector(_ context.Context, userID int64, _ int) (SparseVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.vectorErrs[userID]; err != nil {
		return nil, err
	}
	vec := make(SparseVector)
	for _, ev := range f.events[userID] {
		vec[ev.ProductID] += ev.WeightedValue()
	}
	return vec, nil
}

func (f *fakeBehaviorStore) ProductVector(_ context.Context, productID int64, _ int) (SparseVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.vectorErrs[productID]; err != nil {
		return nil, err
	}
	vec := make(SparseVector)
	for userID, events := range f.events {
		for _, ev := range events {
			if ev.ProductID == productID {
				vec[userID] += ev.WeightedValue()
			}
		}
	}
	return vec, nil
}

func (f *fakeBehaviorStore) ActiveUserIDs(_ context.Context, since time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []int64
	for userID, events := range f.events {
		for _, ev := range events {
			if ev.Timestamp.After(since) {
				ids = append(ids, userID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeBehaviorStore) ActiveProductIDs(_ context.Context, since time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	set := make(map[int64]struct{})
	for _, events := range f.events {
		for _, ev := range events {
			if ev.Timestamp.After(since) {
				set[ev.ProductID] = struct{}{}
			}
		}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeBehaviorStore) InteractionCounts(_ context.Context, since time.Time) (map[int64]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[int64]float64)
	for _, events := range f.events {
		for _, ev := range events {
			if ev.Timestamp.After(since) {
				counts[ev.ProductID] += ev.WeightedValue()
			}
		}
	}
	return counts, nil
}

func (f *fakeBehaviorStore) InteractedProductIDs(_ context.Context, userID int64) (map[int64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[int64]struct{})
	for _, ev := range f.events[userID] {
		set[ev.ProductID] = struct{}{}
	}
	return set, nil
}

// fakeSimilarityStore is an in-memory SimilarityStore keyed by the canonical
// pair, mirroring the unique-key behavior of the real table.
type fakeSimilarityStore struct {
	mu        sync.Mutex
	pairs     map[SimilarityKind]map[[2]int64]SimilarityPair
	upserts   int
	upsertErr error
	failNext  int // fail this many upserts before succeeding
}

var _ SimilarityStore = (*fakeSimilarityStore)(nil)

func newFakeSimilarityStore() *fakeSimilarityStore {
	return &fakeSimilarityStore{
		pairs: map[SimilarityKind]map[[2]int64]SimilarityPair{
			KindUser:    {},
			KindProduct: {},
		},
	}
}

func (f *fakeSimilarityStore) put(kind SimilarityKind, pairs ...SimilarityPair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range pairs {
		f.pairs[kind][[2]int64{p.IDA, p.IDB}] = p
	}
}

func (f *fakeSimilarityStore) UpsertPairs(_ context.Context, kind SimilarityKind, pairs []SimilarityPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failNext > 0 {
		f.failNext--
		return f.upsertErr
	}
	for _, p := range pairs {
		f.pairs[kind][[2]int64{p.IDA, p.IDB}] = p
	}
	return nil
}

func (f *fakeSimilarityStore) MostSimilar(_ context.Context, kind SimilarityKind, id int64, k int) ([]SimilarityPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SimilarityPair
	for _, p := range f.pairs[kind] {
		if p.IDA == id || p.IDB == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		pi, _ := out[i].Partner(id)
		pj, _ := out[j].Partner(id)
		return pi < pj
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeSimilarityStore) SimilarityBetween(_ context.Context, kind SimilarityKind, a, b int64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a > b {
		a, b = b, a
	}
	p, ok := f.pairs[kind][[2]int64{a, b}]
	if !ok {
		return 0, ErrNotFound
	}
	return p.Similarity, nil
}

func (f *fakeSimilarityStore) PairsAboveThreshold(_ context.Context, kind SimilarityKind, threshold float64) ([]SimilarityPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SimilarityPair
	for _, p := range f.pairs[kind] {
		if p.Similarity >= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].IDA != out[j].IDA {
			return out[i].IDA < out[j].IDA
		}
		return out[i].IDB < out[j].IDB
	})
	return out, nil
}

func (f *fakeSimilarityStore) PurgeOlderThan(_ context.Context, kind SimilarityKind, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for key, p := range f.pairs[kind] {
		if p.UpdatedAt.Before(cutoff) {
			delete(f.pairs[kind], key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeSimilarityStore) count(kind SimilarityKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pairs[kind])
}

// fakeRecommendationStore is an in-memory RecommendationStore keyed by
// (user, product, algorithm).
type fakeRecommendationStore struct {
	mu         sync.Mutex
	rows       map[[3]int64]RecommendationResult
	replaceErr error
}

var _ RecommendationStore = (*fakeRecommendationStore)(nil)

func newFakeRecommendationStore() *fakeRecommendationStore {
	return &fakeRecommendationStore{rows: make(map[[3]int64]RecommendationResult)}
}

func rowKey(r RecommendationResult) [3]int64 {
	return [3]int64{r.UserID, r.ProductID, int64(r.Algorithm)}
}

func (f *fakeRecommendationStore) UpsertResults(_ context.Context, results []RecommendationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.rows[rowKey(r)] = r
	}
	return nil
}

func (f *fakeRecommendationStore) ReplaceForUser(_ context.Context, userID int64, algorithms []AlgorithmType, results []RecommendationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	algoSet := make(map[AlgorithmType]struct{}, len(algorithms))
	for _, a := range algorithms {
		algoSet[a] = struct{}{}
	}
	for key, r := range f.rows {
		if r.UserID != userID {
			continue
		}
		if _, ok := algoSet[r.Algorithm]; ok {
			delete(f.rows, key)
		}
	}
	for _, r := range results {
		f.rows[rowKey(r)] = r
	}
	return nil
}

func (f *fakeRecommendationStore) DeleteByUserAndAlgorithms(_ context.Context, userID int64, algorithms []AlgorithmType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, r := range f.rows {
		if r.UserID != userID {
			continue
		}
		for _, a := range algorithms {
			if r.Algorithm == a {
				delete(f.rows, key)
				break
			}
		}
	}
	return nil
}

func (f *fakeRecommendationStore) ValidForUser(_ context.Context, userID int64, now time.Time, limit int) ([]RecommendationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecommendationResult
	for _, r := range f.rows {
		if r.UserID == userID && r.ExpireTime.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecommendationStore) ValidForUserByAlgorithm(ctx context.Context, userID int64, algorithm AlgorithmType, now time.Time, limit int) ([]RecommendationResult, error) {
	all, err := f.ValidForUser(ctx, userID, now, int(^uint(0)>>1))
	if err != nil {
		return nil, err
	}
	var out []RecommendationResult
	for _, r := range all {
		if r.Algorithm == algorithm {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecommendationStore) Find(_ context.Context, userID, productID int64, now time.Time) (RecommendationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.ProductID == productID && r.ExpireTime.After(now) {
			return r, nil
		}
	}
	return RecommendationResult{}, ErrNotFound
}

func (f *fakeRecommendationStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for key, r := range f.rows {
		if !r.ExpireTime.After(now) {
			delete(f.rows, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeRecommendationStore) all(userID int64) []RecommendationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecommendationResult
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// fakeCatalog is an in-memory Catalog.
type fakeCatalog struct {
	mu        sync.Mutex
	products  map[int64]CatalogProduct
	statusErr error
	recentErr error
}

var _ Catalog = (*fakeCatalog)(nil)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: make(map[int64]CatalogProduct)}
}

func (f *fakeCatalog) put(products ...CatalogProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range products {
		f.products[p.ID] = p
	}
}

func (f *fakeCatalog) Status(_ context.Context, productID int64) (ProductStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	p, ok := f.products[productID]
	if !ok {
		return 0, ErrNotFound
	}
	return p.Status, nil
}

func (f *fakeCatalog) CreatedAt(_ context.Context, productID int64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return p.CreatedAt, nil
}

func (f *fakeCatalog) RecentlyCreated(_ context.Context, since time.Time, limit int) ([]CatalogProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	var out []CatalogProduct
	for _, p := range f.products {
		if p.CreatedAt.After(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeCache records ResultCache calls.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[int64][]RecommendationResult
	invalidated []int64
}

var _ ResultCache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int64][]RecommendationResult)}
}

func (f *fakeCache) Get(_ context.Context, userID int64, _ int) ([]RecommendationResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results, ok := f.entries[userID]
	return results, ok, nil
}

func (f *fakeCache) Set(_ context.Context, userID int64, _ int, results []RecommendationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[userID] = results
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, userID)
	f.invalidated = append(f.invalidated, userID)
	return nil
}

// staticSource is a CandidateSource returning a fixed slice or error.
type staticSource struct {
	name       string
	algorithm  AlgorithmType
	candidates []Candidate
	err        error
}

var _ CandidateSource = (*staticSource)(nil)

func (s *staticSource) Name() string             { return s.name }
func (s *staticSource) Algorithm() AlgorithmType { return s.algorithm }

func (s *staticSource) Candidates(_ context.Context, _ int64, limit int) ([]Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.candidates
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
