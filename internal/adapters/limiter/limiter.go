// Package limiter tracks the resource budget for module loading.
package limiter

import (
	"context"
	"sync/atomic"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

var _ ports.Limiter = (*Limiter)(nil)

// Limiter enforces the configured ceilings for load parallelism, open file
// handles and approximate memory. Counters are atomic; the parallelism
// bound is a weighted semaphore.
type Limiter struct {
	slots       *semaphore.Weighted
	parallelism int64

	memory     atomic.Int64
	handles    atomic.Int64
	maxMemory  int64
	maxHandles int64

	cachedFn func() int
	maxCache int
}

// New creates a Limiter. cachedFn reports the current cached module count
// for budget snapshots; it may be nil until SetCacheProbe is called.
func New(parallelism int, maxMemory, maxHandles int64, maxCached int) *Limiter {
	return &Limiter{
		slots:       semaphore.NewWeighted(int64(parallelism)),
		parallelism: int64(parallelism),
		maxMemory:   maxMemory,
		maxHandles:  maxHandles,
		maxCache:    maxCached,
	}
}

// Drain blocks until every load slot has been returned or ctx expires, so
// shutdown waits for in-flight loads instead of cutting them off.
func (l *Limiter) Drain(ctx context.Context) error {
	if err := l.slots.Acquire(ctx, l.parallelism); err != nil {
		return zerr.Wrap(domain.ErrTimeout, "waiting for in-flight loads to finish")
	}
	l.slots.Release(l.parallelism)
	return nil
}

// SetCacheProbe wires the cached-module counter into budget snapshots.
func (l *Limiter) SetCacheProbe(fn func() int) {
	l.cachedFn = fn
}

// AcquireSlot blocks until a load slot is free or ctx expires.
func (l *Limiter) AcquireSlot(ctx context.Context) (func(), error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, zerr.Wrap(domain.ErrTimeout, "waiting for a load slot")
		}
		return nil, err
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.slots.Release(1)
		}
	}, nil
}

// AcquireHandle charges one open file handle against the budget.
func (l *Limiter) AcquireHandle() error {
	if l.handles.Add(1) > l.maxHandles {
		l.handles.Add(-1)
		return zerr.With(zerr.With(domain.ErrResourceExhausted,
			"resource", "handles"),
			"ceiling", l.maxHandles,
		)
	}
	return nil
}

// ReleaseHandle returns a file handle to the budget.
func (l *Limiter) ReleaseHandle() {
	l.handles.Add(-1)
}

// ReserveMemory charges n bytes against the memory ceiling.
func (l *Limiter) ReserveMemory(n int64) error {
	if l.memory.Add(n) > l.maxMemory {
		l.memory.Add(-n)
		return zerr.With(zerr.With(zerr.With(domain.ErrResourceExhausted,
			"resource", "memory"),
			"requested", n),
			"ceiling", l.maxMemory,
		)
	}
	return nil
}

// ReleaseMemory returns n bytes to the budget.
func (l *Limiter) ReleaseMemory(n int64) {
	l.memory.Add(-n)
}

// Snapshot returns the current budget counters.
func (l *Limiter) Snapshot() domain.ResourceBudget {
	cached := 0
	if l.cachedFn != nil {
		cached = l.cachedFn()
	}
	return domain.ResourceBudget{
		MemoryBytes:    l.memory.Load(),
		MaxMemoryBytes: l.maxMemory,
		OpenHandles:    l.handles.Load(),
		MaxOpenHandles: l.maxHandles,
		CachedModules:  cached,
		MaxCached:      l.maxCache,
	}
}
