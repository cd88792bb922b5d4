// Package cache implements a generic two-tier TTL cache: an in-memory
// map in front of a persistent kvstore.Store. The memory tier is
// authoritative for the session; persistent-tier failures are logged
// and never escape the cache boundary.
package cache

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"alephium-gateway/internal/kvstore"
)

// Entry wraps a cached value with its write time (Unix milliseconds).
type Entry[T any] struct {
	Value    T      `json:"value"`
	CachedAt int64  `json:"cachedAt"`
	Source   string `json:"source"`
}

// Stats summarizes cache contents.
type Stats struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// Cache is a two-tier TTL cache keyed by opaque strings. A zero TTL
// means entries never expire and are only removed by Clear. A non-zero
// TTL is a fixed freshness window: entries whose age reaches the window
// are treated as absent on read, but are not proactively deleted.
type Cache[T any] struct {
	mu     sync.RWMutex
	prefix string
	ttl    time.Duration
	mem    map[string]Entry[T]
	store  kvstore.Store
	logger *log.Logger
	nowFn  func() time.Time
}

// New creates a cache persisting under prefix in store. A nil store
// leaves the cache memory-only; a nil logger discards log output.
func New[T any](prefix string, ttl time.Duration, store kvstore.Store, logger *log.Logger) *Cache[T] {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Cache[T]{
		prefix: prefix,
		ttl:    ttl,
		mem:    make(map[string]Entry[T]),
		store:  store,
		logger: logger,
		nowFn:  time.Now,
	}
}

func (c *Cache[T]) storageKey(key string) string {
	return c.prefix + key
}

// fresh reports whether an entry written at cachedAt is still usable.
// An entry exactly at the window boundary is stale.
func (c *Cache[T]) fresh(cachedAt int64) bool {
	if c.ttl == 0 {
		return true
	}
	age := c.nowFn().UnixMilli() - cachedAt
	return age < c.ttl.Milliseconds()
}

// Get returns the cached value for key, checking the memory tier first
// and promoting persistent-tier hits into memory.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()

	if ok {
		if c.fresh(entry.CachedAt) {
			return entry.Value, true
		}
		// Stale in memory implies stale on disk: same write time.
		return zero, false
	}

	if c.store == nil {
		return zero, false
	}

	raw, ok, err := c.store.Get(ctx, c.storageKey(key))
	if err != nil {
		c.logger.Printf("cache %s: persistent read for %q failed: %v", c.prefix, key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Printf("cache %s: corrupt entry for %q: %v", c.prefix, key, err)
		return zero, false
	}
	if !c.fresh(entry.CachedAt) {
		return zero, false
	}

	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()

	return entry.Value, true
}

// Set writes value through both tiers. A persistent-tier failure (e.g.
// quota or connectivity) is logged; the memory tier remains
// authoritative for the session.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	entry := Entry[T]{
		Value:    value,
		CachedAt: c.nowFn().UnixMilli(),
		Source:   "cache",
	}

	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Printf("cache %s: marshal entry for %q failed: %v", c.prefix, key, err)
		return
	}
	if err := c.store.Set(ctx, c.storageKey(key), string(raw)); err != nil {
		c.logger.Printf("cache %s: persistent write for %q failed: %v", c.prefix, key, err)
	}
}

// Clear removes the given keys, or every entry when called with none.
func (c *Cache[T]) Clear(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		c.mu.Lock()
		c.mem = make(map[string]Entry[T])
		c.mu.Unlock()

		if c.store == nil {
			return
		}
		stored, err := c.store.Keys(ctx, c.prefix)
		if err != nil {
			c.logger.Printf("cache %s: list persistent keys failed: %v", c.prefix, err)
			return
		}
		for _, k := range stored {
			if err := c.store.Delete(ctx, k); err != nil {
				c.logger.Printf("cache %s: persistent delete of %q failed: %v", c.prefix, k, err)
			}
		}
		return
	}

	c.mu.Lock()
	for _, k := range keys {
		delete(c.mem, k)
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	for _, k := range keys {
		if err := c.store.Delete(ctx, c.storageKey(k)); err != nil {
			c.logger.Printf("cache %s: persistent delete of %q failed: %v", c.prefix, k, err)
		}
	}
}

// Stats returns the number of entries and their keys, merging the
// memory tier with whatever the persistent tier still holds.
func (c *Cache[T]) Stats(ctx context.Context) Stats {
	seen := make(map[string]struct{})

	c.mu.RLock()
	for k := range c.mem {
		seen[k] = struct{}{}
	}
	c.mu.RUnlock()

	if c.store != nil {
		stored, err := c.store.Keys(ctx, c.prefix)
		if err != nil {
			c.logger.Printf("cache %s: list persistent keys failed: %v", c.prefix, err)
		}
		for _, k := range stored {
			seen[k[len(c.prefix):]] = struct{}{}
		}
	}

	stats := Stats{Count: len(seen), Keys: make([]string, 0, len(seen))}
	for k := range seen {
		stats.Keys = append(stats.Keys, k)
	}
	return stats
}
