package ports

import "go.trai.ch/sompack/internal/core/domain"

// ModuleCache is a bounded cache of module records keyed by canonical id.
// Eviction order is least-recently-used.
type ModuleCache interface {
	// Get returns the cached record and marks it recently used.
	Get(id string) (*domain.ModuleRecord, bool)

	// Add stores a record, possibly evicting the least-recently-used entry.
	Add(id string, rec *domain.ModuleRecord)

	// Remove drops a record explicitly. Eviction callbacks still observe
	// the departure so budget accounting stays correct.
	Remove(id string)

	// EvictOldest force-evicts the least-recently-used entry. It reports
	// whether anything was evicted.
	EvictOldest() bool

	// Len returns the number of cached records.
	Len() int

	// Purge drops every record.
	Purge()
}
