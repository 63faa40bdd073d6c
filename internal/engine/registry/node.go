package registry

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the graft node for the module registry.
const NodeID graft.ID = "engine.registry"

func init() {
	graft.Register(graft.Node[*Registry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (*Registry, error) {
			return New(), nil
		},
	})
}
