// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testBuilder(t *testing.T, behaviors *fakeBehaviorStore, similarity *fakeSimilarityStore, cfg Config) *MatrixBuilder {
	t.Helper()
	b, err := NewMatrixBuilder(behaviors, similarity, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMatrixBuilder: %v", err)
	}
	return b
}

func TestBuildUserMatrixEmptyActiveSet(t *testing.T) {
	t.Parallel()

	behaviors := newFakeBehaviorStore()
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	processed, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("BuildUserMatrix: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if similarity.count(KindUser) != 0 {
		t.Errorf("pairs stored = %d, want 0", similarity.count(KindUser))
	}
}

func TestBuildUserMatrixComputesPairs(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	// User 1 buys p1 twice and p2 once; user 2 buys each once. With VIEW
	// weight 1.0 this reproduces vectors {p1:2, p2:1} and {p1:1, p2:1}.
	behaviors.add(
		BehaviorEvent{UserID: 1, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 1, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 1, ProductID: 2, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 2, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 2, ProductID: 2, Type: BehaviorView, Timestamp: now},
	)
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	processed, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("BuildUserMatrix: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}

	sim, err := similarity.SimilarityBetween(context.Background(), KindUser, 2, 1)
	if err != nil {
		t.Fatalf("SimilarityBetween: %v", err)
	}
	if sim != 0.9487 {
		t.Errorf("similarity = %v, want 0.9487", sim)
	}
}

func TestBuildUserMatrixIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	for userID := int64(1); userID <= 4; userID++ {
		behaviors.add(BehaviorEvent{UserID: userID, ProductID: 1, Type: BehaviorView, Timestamp: now})
	}
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	first, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	// 4 users -> C(4,2) = 6 pairs each run, no duplicate rows.
	if first != 6 || second != 6 {
		t.Errorf("processed = (%d, %d), want (6, 6)", first, second)
	}
	if similarity.count(KindUser) != 6 {
		t.Errorf("pairs stored = %d, want 6", similarity.count(KindUser))
	}
}

func TestBuildUserMatrixSkipsFailingVector(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	behaviors.add(
		BehaviorEvent{UserID: 1, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 2, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 3, ProductID: 1, Type: BehaviorView, Timestamp: now},
	)
	behaviors.vectorErrs[2] = errors.New("corrupt aggregate")
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	processed, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("BuildUserMatrix: %v", err)
	}
	// Only the (1, 3) pair survives user 2's load failure.
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if _, err := similarity.SimilarityBetween(context.Background(), KindUser, 1, 3); err != nil {
		t.Errorf("expected pair (1,3) to exist: %v", err)
	}
}

func TestBuildUserMatrixFlushFailureSkipsBatch(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	for userID := int64(1); userID <= 4; userID++ {
		behaviors.add(BehaviorEvent{UserID: userID, ProductID: 1, Type: BehaviorView, Timestamp: now})
	}
	similarity := newFakeSimilarityStore()
	similarity.upsertErr = errors.New("store unavailable")
	similarity.failNext = 1

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	b := testBuilder(t, behaviors, similarity, cfg)

	processed, err := b.BuildUserMatrix(context.Background())
	if err != nil {
		t.Fatalf("BuildUserMatrix: %v", err)
	}
	// 6 pairs in 3 batches of 2; the first flush fails, so 4 are counted.
	if processed != 4 {
		t.Errorf("processed = %d, want 4", processed)
	}
}

func TestBuildUserMatrixCancellation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	for userID := int64(1); userID <= 20; userID++ {
		behaviors.add(BehaviorEvent{UserID: userID, ProductID: 1, Type: BehaviorView, Timestamp: now})
	}
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.BuildUserMatrix(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuildProductMatrixComputesPairs(t *testing.T) {
	t.Parallel()

	now := time.Now()
	behaviors := newFakeBehaviorStore()
	// Products 1 and 2 share buyers 1 and 2 with identical weights.
	behaviors.add(
		BehaviorEvent{UserID: 1, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 1, ProductID: 2, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 2, ProductID: 1, Type: BehaviorView, Timestamp: now},
		BehaviorEvent{UserID: 2, ProductID: 2, Type: BehaviorView, Timestamp: now},
	)
	similarity := newFakeSimilarityStore()
	b := testBuilder(t, behaviors, similarity, DefaultConfig())

	processed, err := b.BuildProductMatrix(context.Background())
	if err != nil {
		t.Fatalf("BuildProductMatrix: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}

	sim, err := similarity.SimilarityBetween(context.Background(), KindProduct, 1, 2)
	if err != nil {
		t.Fatalf("SimilarityBetween: %v", err)
	}
	if sim != 1 {
		t.Errorf("similarity = %v, want 1", sim)
	}
}

func TestNewMatrixBuilderValidation(t *testing.T) {
	t.Parallel()

	behaviors := newFakeBehaviorStore()
	similarity := newFakeSimilarityStore()

	if _, err := NewMatrixBuilder(nil, similarity, DefaultConfig(), zerolog.Nop()); err == nil {
		t.Error("expected error for nil behavior store")
	}
	if _, err := NewMatrixBuilder(behaviors, nil, DefaultConfig(), zerolog.Nop()); err == nil {
		t.Error("expected error for nil similarity store")
	}

	bad := DefaultConfig()
	bad.BatchSize = 0
	if _, err := NewMatrixBuilder(behaviors, similarity, bad, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid config")
	}
}
