// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

var _ recommend.ResultCache = (*MemoryCache)(nil)

type memoryKey struct {
	userID int64
	limit  int
}

type memoryEntry struct {
	key       memoryKey
	results   []recommend.RecommendationResult
	prev      *memoryEntry
	next      *memoryEntry
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-process LRU cache for recommendation
// lists with TTL support. It serves deployments that run without Redis.
//
// A doubly-linked list provides O(1) eviction and a map provides O(1)
// lookup. head.next is the most recently used entry, tail.prev the least.
// Expired entries are dropped lazily on access.
type MemoryCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[memoryKey]*memoryEntry

	// head and tail are sentinel nodes for the linked list.
	head *memoryEntry
	tail *memoryEntry

	now func() time.Time
}

// NewMemoryCache creates an in-process result cache bounded to capacity
// entries, each living for ttl.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[memoryKey]*memoryEntry, capacity),
		head:     &memoryEntry{},
		tail:     &memoryEntry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached list for (userID, limit) when present and not
// expired. Found entries move to the front of the LRU order.
func (c *MemoryCache) Get(_ context.Context, userID int64, limit int) ([]recommend.RecommendationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[memoryKey{userID: userID, limit: limit}]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.removeEntry(entry)
		return nil, false, nil
	}

	c.moveToFront(entry)
	results := make([]recommend.RecommendationResult, len(entry.results))
	copy(results, entry.results)
	return results, true, nil
}

// Set stores the list for (userID, limit), evicting the least recently
// used entry when the cache is at capacity.
func (c *MemoryCache) Set(_ context.Context, userID int64, limit int, results []recommend.RecommendationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := memoryKey{userID: userID, limit: limit}
	stored := make([]recommend.RecommendationResult, len(results))
	copy(stored, results)
	expiresAt := c.now().Add(c.ttl)

	if entry, ok := c.items[key]; ok {
		entry.results = stored
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return nil
	}

	entry := &memoryEntry{key: key, results: stored, expiresAt: expiresAt}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
	return nil
}

// Invalidate drops every cached list for the user, regardless of limit.
func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.items {
		if key.userID == userID {
			c.removeEntry(entry)
		}
	}
	return nil
}

// Len returns the current number of cached lists.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Internal methods (must be called with lock held)

func (c *MemoryCache) addToFront(entry *memoryEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *MemoryCache) moveToFront(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *MemoryCache) removeEntry(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *MemoryCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
