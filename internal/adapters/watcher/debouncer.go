package watcher

import (
	"sort"
	"sync"
	"time"
	"unique"
)

// DefaultDebounceWindow coalesces editor save bursts into one invalidation.
const DefaultDebounceWindow = 50 * time.Millisecond

// Debouncer coalesces rapid file events into one batched callback. Paths
// arriving within the window are deduplicated; the callback receives them
// sorted so invalidation order is deterministic.
type Debouncer struct {
	window   time.Duration
	callback func(paths []string)

	mu      sync.Mutex
	pending map[unique.Handle[string]]struct{}
	timer   *time.Timer
}

// NewDebouncer creates a Debouncer firing callback after window of quiet.
func NewDebouncer(window time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[unique.Handle[string]]struct{}),
	}
}

// Add records a changed path and restarts the quiet window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[unique.Make(path)] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	paths := d.take(nil)
	if len(paths) > 0 {
		go d.callback(paths)
	}
}

// Flush delivers pending paths synchronously. Used during shutdown so the
// last invalidation completes before teardown continues.
func (d *Debouncer) Flush() {
	var fired bool
	paths := d.take(&fired)
	if fired {
		// The timer won the race; its callback delivers the batch.
		return
	}
	if len(paths) > 0 {
		d.callback(paths)
	}
}

// take drains the pending set under the lock. When stopTimer is non-nil the
// timer is cancelled first, and *stopTimer reports that it already fired.
func (d *Debouncer) take(stopTimer *bool) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stopTimer != nil && d.timer != nil {
		if !d.timer.Stop() {
			*stopTimer = true
			return nil
		}
	}
	d.timer = nil

	if len(d.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(d.pending))
	for handle := range d.pending {
		paths = append(paths, handle.Value())
	}
	d.pending = make(map[unique.Handle[string]]struct{})
	sort.Strings(paths)
	return paths
}
