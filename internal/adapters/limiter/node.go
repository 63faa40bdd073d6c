package limiter

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/config"
)

// NodeID is the graft node for the resource limiter. It provides the
// concrete type so the loader can wire the cached-module probe.
const NodeID graft.ID = "adapter.limiter"

func init() {
	graft.Register(graft.Node[*Limiter]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (*Limiter, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return New(
				cfg.Parallelism,
				cfg.Limits.MaxMemoryBytes,
				cfg.Limits.MaxOpenHandles,
				cfg.Limits.MaxCachedModules,
			), nil
		},
	})
}
