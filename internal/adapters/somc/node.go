package somc

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/core/ports"
)

const (
	// NodeID is the graft node for the compiler collaborator.
	NodeID graft.ID = "adapter.somc"
	// ScannerNodeID is the graft node for the import pre-scanner.
	ScannerNodeID graft.ID = "adapter.somc.scanner"
)

func init() {
	graft.Register(graft.Node[ports.Compiler]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Compiler, error) {
			return NewCompiler(), nil
		},
	})

	graft.Register(graft.Node[ports.ImportScanner]{
		ID:        ScannerNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ImportScanner, error) {
			return NewCompiler(), nil
		},
	})
}
