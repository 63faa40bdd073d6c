package ports

import (
	"context"
	"iter"
)

// WatchOp is the kind of filesystem change observed.
type WatchOp int

const (
	OpWrite WatchOp = iota
	OpCreate
	OpRemove
	OpRename
)

// WatchEvent is a single filesystem change under the watched root.
type WatchEvent struct {
	Path      string
	Operation WatchOp
}

// Watcher watches a directory tree for source changes.
type Watcher interface {
	// Start begins watching the given root directory recursively.
	Start(ctx context.Context, root string) error

	// Events returns an iterator of filesystem events.
	Events() iter.Seq[WatchEvent]

	// Stop stops the watcher and releases all resources.
	Stop() error
}
