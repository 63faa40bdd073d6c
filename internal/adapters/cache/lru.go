// Package cache implements the bounded module record cache.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ModuleCache = (*LRU)(nil)

// EvictFunc is notified whenever a record leaves the cache, whether from
// LRU pressure or explicit removal. Callers that cascade removals from
// inside the callback must guard against re-entrancy themselves.
type EvictFunc func(id string, rec *domain.ModuleRecord)

// LRU is a bounded least-recently-used cache of module records keyed by
// canonical id. Safe for concurrent use.
type LRU struct {
	inner *lru.Cache[string, *domain.ModuleRecord]
}

// New creates a cache holding at most maxEntries records. onEvict may be nil.
func New(maxEntries int, onEvict EvictFunc) (*LRU, error) {
	var cb func(string, *domain.ModuleRecord)
	if onEvict != nil {
		cb = func(id string, rec *domain.ModuleRecord) {
			onEvict(id, rec)
		}
	}
	inner, err := lru.NewWithEvict[string, *domain.ModuleRecord](maxEntries, cb)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create module cache")
	}
	return &LRU{inner: inner}, nil
}

// Get returns the cached record and marks it recently used.
func (c *LRU) Get(id string) (*domain.ModuleRecord, bool) {
	return c.inner.Get(id)
}

// Add stores a record, evicting the least-recently-used entry when full.
func (c *LRU) Add(id string, rec *domain.ModuleRecord) {
	c.inner.Add(id, rec)
}

// Remove drops a record. The eviction callback fires so budget accounting
// stays correct for explicit invalidations too.
func (c *LRU) Remove(id string) {
	c.inner.Remove(id)
}

// EvictOldest force-evicts the least-recently-used entry.
func (c *LRU) EvictOldest() bool {
	_, _, ok := c.inner.RemoveOldest()
	return ok
}

// Len returns the number of cached records.
func (c *LRU) Len() int {
	return c.inner.Len()
}

// Keys returns the cached ids from oldest to newest.
func (c *LRU) Keys() []string {
	return c.inner.Keys()
}

// Purge drops every record.
func (c *LRU) Purge() {
	c.inner.Purge()
}
