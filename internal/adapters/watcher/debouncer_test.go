package watcher_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sompack/internal/adapters/watcher"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
	done    chan struct{}
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{done: make(chan struct{}, 16)}
}

func (r *batchRecorder) record(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *batchRecorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestDebouncer_CoalescesAndSorts(t *testing.T) {
	rec := newBatchRecorder()
	d := watcher.NewDebouncer(20*time.Millisecond, rec.record)

	d.Add("/proj/b.som")
	d.Add("/proj/a.som")
	d.Add("/proj/b.som")

	batch := rec.wait(t)
	assert.Equal(t, []string{"/proj/a.som", "/proj/b.som"}, batch)
	assert.Equal(t, 1, rec.count())
}

func TestDebouncer_WindowRestartsOnAdd(t *testing.T) {
	rec := newBatchRecorder()
	d := watcher.NewDebouncer(50*time.Millisecond, rec.record)

	d.Add("/proj/a.som")
	time.Sleep(25 * time.Millisecond)
	d.Add("/proj/b.som")
	time.Sleep(25 * time.Millisecond)
	require.Equal(t, 0, rec.count())

	batch := rec.wait(t)
	assert.Equal(t, []string{"/proj/a.som", "/proj/b.som"}, batch)
}

func TestDebouncer_FlushDeliversSynchronously(t *testing.T) {
	var got []string
	d := watcher.NewDebouncer(time.Hour, func(paths []string) { got = paths })

	d.Add("/proj/a.som")
	d.Flush()

	assert.Equal(t, []string{"/proj/a.som"}, got)
}

func TestDebouncer_FlushWithoutPendingIsNoop(t *testing.T) {
	called := false
	d := watcher.NewDebouncer(time.Hour, func([]string) { called = true })

	d.Flush()

	assert.False(t, called)
}
