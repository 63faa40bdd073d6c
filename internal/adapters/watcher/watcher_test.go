package watcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/adapters/watcher"
	"go.trai.ch/sompack/internal/core/ports"
)

func collectEvents(w ports.Watcher) <-chan ports.WatchEvent {
	out := make(chan ports.WatchEvent, 16)
	go func() {
		defer close(out)
		for event := range w.Events() {
			out <- event
		}
	}()
	return out
}

func waitFor(t *testing.T, events <-chan ports.WatchEvent, path string) ports.WatchEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("event stream closed early")
			}
			if event.Path == path {
				return event
			}
		case <-deadline:
			t.Fatalf("no event observed for %s", path)
		}
	}
}

func TestWatcher_ObservesWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(logger.NewWithWriter(io.Discard, slog.LevelError))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, dir))
	events := collectEvents(w)

	path := filepath.Join(dir, "main.som")
	require.NoError(t, os.WriteFile(path, []byte("let one = 1\n"), 0o644))

	event := waitFor(t, events, path)
	assert.Contains(t, []ports.WatchOp{ports.OpCreate, ports.OpWrite}, event.Operation)
	require.NoError(t, w.Stop())
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(logger.NewWithWriter(io.Discard, slog.LevelError))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, dir))
	events := collectEvents(w)

	sub := filepath.Join(dir, "lib")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitFor(t, events, sub)

	// Give the watcher a moment to register the new directory.
	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(sub, "util.som")
	require.NoError(t, os.WriteFile(path, []byte("let one = 1\n"), 0o644))
	waitFor(t, events, path)
	require.NoError(t, w.Stop())
}

func TestWatcher_StopEndsEventStream(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(logger.NewWithWriter(io.Discard, slog.LevelError))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, dir))
	events := collectEvents(w)
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("event stream did not close")
	}
}
