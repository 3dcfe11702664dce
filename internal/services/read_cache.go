package services

import (
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/metrics"
)

// ReadCache memoizes analytics reads per user. Keys are prefixed with the
// user id so a write by that user drops all of them at once. Each user also
// has a generation bumped on invalidation; a read that started before the
// bump is not stored.
type ReadCache struct {
	lru *cache.LRUCache[any]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewReadCache(size int, ttl time.Duration) *ReadCache {
	return &ReadCache{
		lru:  cache.NewLRUCache[any](size, ttl),
		gens: make(map[string]uint64),
	}
}

func (c *ReadCache) InvalidateUser(userID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gens[userID]++
	c.mu.Unlock()
	c.lru.DeletePrefix(userKey(userID, ""))
}

func (c *ReadCache) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// storeIfCurrent sets key only while the user's generation still equals gen.
func (c *ReadCache) storeIfCurrent(userID string, gen uint64, key string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false
	}
	c.lru.Set(key, v)
	return true
}

// Cleaner exposes expiry sweeping to a cache.Manager.
func (c *ReadCache) Cleaner() cache.Cleaner { return c.lru }

func userKey(userID, rest string) string {
	return userID + "|" + rest
}

// cachedRead serves key from c when present, otherwise runs fn and caches
// the result unless it is degraded. A nil cache always runs fn.
func cachedRead[T any](c *ReadCache, userID, key string, fn func() ReadResult[T]) ReadResult[T] {
	if c == nil {
		return fn()
	}
	k := userKey(userID, key)
	if v, ok := c.lru.Get(k); ok {
		if typed, ok := v.(T); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return ReadResult[T]{Value: typed}
		}
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	gen := c.generation(userID)
	r := fn()
	if !r.Degraded() {
		c.storeIfCurrent(userID, gen, k, r.Value)
	}
	return r
}
