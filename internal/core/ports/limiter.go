package ports

import (
	"context"

	"go.trai.ch/sompack/internal/core/domain"
)

// Limiter tracks the resource budget: approximate memory, open file handles
// and load parallelism. Breaching a ceiling fails with
// domain.ErrResourceExhausted rather than growing unbounded.
type Limiter interface {
	// AcquireSlot blocks until a load slot is free or ctx expires.
	// The returned release function must be called exactly once.
	AcquireSlot(ctx context.Context) (release func(), err error)

	// AcquireHandle charges one open file handle against the budget.
	AcquireHandle() error

	// ReleaseHandle returns a file handle to the budget.
	ReleaseHandle()

	// ReserveMemory charges n bytes against the memory ceiling.
	ReserveMemory(n int64) error

	// ReleaseMemory returns n bytes to the budget.
	ReleaseMemory(n int64)

	// Snapshot returns the current budget counters.
	Snapshot() domain.ResourceBudget
}
