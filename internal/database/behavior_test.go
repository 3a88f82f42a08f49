// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package database

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

func seedBehaviors(t *testing.T, db *DB, events ...recommend.BehaviorEvent) {
	t.Helper()
	if err := db.InsertBehaviors(context.Background(), events); err != nil {
		t.Fatalf("InsertBehaviors: %v", err)
	}
}

func TestInsertAndRecentInteractions(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 1, ProductID: 10, CategoryID: 3, Type: recommend.BehaviorView, Timestamp: now.Add(-2 * time.Hour)},
		recommend.BehaviorEvent{UserID: 1, ProductID: 11, Type: recommend.BehaviorCartAdd, Quantity: 2, Timestamp: now.Add(-time.Hour)},
		recommend.BehaviorEvent{UserID: 1, ProductID: 12, Type: recommend.BehaviorFavorite, Timestamp: now},
		recommend.BehaviorEvent{UserID: 2, ProductID: 10, Type: recommend.BehaviorView, Timestamp: now},
	)

	events, err := db.RecentInteractions(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	// Newest first.
	if events[0].ProductID != 12 || events[1].ProductID != 11 {
		t.Errorf("order wrong: %+v", events)
	}
	if events[0].Type != recommend.BehaviorFavorite {
		t.Errorf("type = %v, want FAVORITE", events[0].Type)
	}
	if events[1].Quantity != 2 {
		t.Errorf("quantity = %v, want 2", events[1].Quantity)
	}
}

func TestInsertBehaviorsRejectsInvalidType(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := db.InsertBehaviors(context.Background(), []recommend.BehaviorEvent{
		{UserID: 1, ProductID: 1, Type: recommend.BehaviorType(99)},
	})
	if err == nil {
		t.Error("expected error for invalid behavior type")
	}
}

func TestPurchaseVectorAggregatesWeights(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	// p1: view (1.0) + cart add qty 2 (6.0) = 7.0; p2: favorite = 4.0.
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 1, ProductID: 1, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 1, ProductID: 1, Type: recommend.BehaviorCartAdd, Quantity: 2, Timestamp: now},
		recommend.BehaviorEvent{UserID: 1, ProductID: 2, Type: recommend.BehaviorFavorite, Timestamp: now},
	)

	vec, err := db.PurchaseVector(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("PurchaseVector: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(vec), vec)
	}
	if math.Abs(vec[1]-7.0) > 1e-9 {
		t.Errorf("vec[1] = %v, want 7.0", vec[1])
	}
	if math.Abs(vec[2]-4.0) > 1e-9 {
		t.Errorf("vec[2] = %v, want 4.0", vec[2])
	}
}

func TestPurchaseVectorCapsDistinctProducts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	events := make([]recommend.BehaviorEvent, 0, 10)
	for i := int64(0); i < 10; i++ {
		events = append(events, recommend.BehaviorEvent{
			UserID: 1, ProductID: 100 + i, Type: recommend.BehaviorView,
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		})
	}
	seedBehaviors(t, db, events...)

	vec, err := db.PurchaseVector(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("PurchaseVector: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(vec), vec)
	}
	// The three most recently touched products survive.
	for _, id := range []int64{107, 108, 109} {
		if _, ok := vec[id]; !ok {
			t.Errorf("expected product %d in capped vector: %v", id, vec)
		}
	}
}

func TestPurchaseVectorEmptyHistory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	vec, err := db.PurchaseVector(context.Background(), 42, 50)
	if err != nil {
		t.Fatalf("PurchaseVector: %v", err)
	}
	if len(vec) != 0 {
		t.Errorf("expected empty vector, got %v", vec)
	}
}

func TestProductVector(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 1, ProductID: 5, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 2, ProductID: 5, Type: recommend.BehaviorRating, Timestamp: now},
		recommend.BehaviorEvent{UserID: 3, ProductID: 6, Type: recommend.BehaviorView, Timestamp: now},
	)

	vec, err := db.ProductVector(context.Background(), 5, 200)
	if err != nil {
		t.Fatalf("ProductVector: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(vec), vec)
	}
	if vec[1] != 1.0 || vec[2] != 2.0 {
		t.Errorf("weights wrong: %v", vec)
	}
}

func TestActiveIDs(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 2, ProductID: 20, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 1, ProductID: 10, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 3, ProductID: 30, Type: recommend.BehaviorView, Timestamp: now.Add(-48 * time.Hour)},
	)

	users, err := db.ActiveUserIDs(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ActiveUserIDs: %v", err)
	}
	if len(users) != 2 || users[0] != 1 || users[1] != 2 {
		t.Errorf("users = %v, want [1 2]", users)
	}

	products, err := db.ActiveProductIDs(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ActiveProductIDs: %v", err)
	}
	if len(products) != 2 || products[0] != 10 || products[1] != 20 {
		t.Errorf("products = %v, want [10 20]", products)
	}
}

func TestInteractionCounts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 1, ProductID: 1, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 2, ProductID: 1, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 3, ProductID: 2, Type: recommend.BehaviorFavorite, Timestamp: now},
		// Outside the window, must not count.
		recommend.BehaviorEvent{UserID: 4, ProductID: 3, Type: recommend.BehaviorView, Timestamp: now.Add(-48 * time.Hour)},
	)

	counts, err := db.InteractionCounts(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("InteractionCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(counts), counts)
	}
	if counts[1] != 2.0 || counts[2] != 4.0 {
		t.Errorf("counts wrong: %v", counts)
	}
}

func TestInteractedProductIDs(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Now()
	seedBehaviors(t, db,
		recommend.BehaviorEvent{UserID: 1, ProductID: 7, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 1, ProductID: 7, Type: recommend.BehaviorClick, Timestamp: now},
		recommend.BehaviorEvent{UserID: 1, ProductID: 8, Type: recommend.BehaviorView, Timestamp: now},
		recommend.BehaviorEvent{UserID: 2, ProductID: 9, Type: recommend.BehaviorView, Timestamp: now},
	)

	set, err := db.InteractedProductIDs(context.Background(), 1)
	if err != nil {
		t.Fatalf("InteractedProductIDs: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(set), set)
	}
	for _, id := range []int64{7, 8} {
		if _, ok := set[id]; !ok {
			t.Errorf("missing product %d", id)
		}
	}
}
