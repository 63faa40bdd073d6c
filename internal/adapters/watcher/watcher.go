// Package watcher implements recursive filesystem watching for incremental
// module invalidation.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/sompack/internal/core/ports"
)

var _ ports.Watcher = (*Watcher)(nil)

// skipDirs are directory names excluded from watching. External packages
// are invalidated through resolution, not file events.
var skipDirs = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

const eventBuffer = 100

// Watcher converts fsnotify events on a directory tree into WatchEvents.
type Watcher struct {
	inner  *fsnotify.Watcher
	logger ports.Logger
	events chan ports.WatchEvent
}

// New creates a Watcher.
func New(logger ports.Logger) (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		inner:  inner,
		logger: logger,
		events: make(chan ports.WatchEvent, eventBuffer),
	}, nil
}

// Start begins watching root recursively. Directories created later under
// root are picked up as they appear.
func (w *Watcher) Start(ctx context.Context, root string) error {
	for dir := range directoriesUnder(root) {
		if err := w.inner.Add(dir); err != nil {
			return err
		}
	}
	go w.pump(ctx)
	return nil
}

// Stop closes the underlying watcher. The events channel closes once the
// pump drains.
func (w *Watcher) Stop() error {
	return w.inner.Close()
}

// Events returns an iterator over filesystem events. The sequence ends when
// the watcher stops.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// directoriesUnder yields root and every non-skipped directory below it.
// Unreadable directories are skipped rather than failing the walk.
func directoriesUnder(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr
			}
			if !d.IsDir() {
				return nil
			}
			if skipDirs[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) pump(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}
			op, relevant := convertOp(event.Op)
			if !relevant {
				continue
			}
			select {
			case w.events <- ports.WatchEvent{Path: event.Name, Operation: op}:
			case <-ctx.Done():
				return
			}
			if op == ports.OpCreate {
				w.watchNewDirectory(event.Name)
			}
		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

// watchNewDirectory registers a freshly created directory and its subtree.
func (w *Watcher) watchNewDirectory(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skipDirs[info.Name()] {
		return
	}
	for dir := range directoriesUnder(path) {
		if err := w.inner.Add(dir); err != nil {
			w.logger.Warn("failed to watch new directory", "dir", dir, "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) (ports.WatchOp, bool) {
	switch {
	case op.Has(fsnotify.Write):
		return ports.OpWrite, true
	case op.Has(fsnotify.Create):
		return ports.OpCreate, true
	case op.Has(fsnotify.Remove):
		return ports.OpRemove, true
	case op.Has(fsnotify.Rename):
		return ports.OpRename, true
	default:
		return 0, false
	}
}
