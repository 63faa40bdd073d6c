package bundler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/fs"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/loader"
)

// NodeID is the graft node for the bundler.
const NodeID graft.ID = "engine.bundler"

func init() {
	graft.Register(graft.Node[*Bundler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, loader.NodeID, fs.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Bundler, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			ld, err := graft.Dep[*loader.Loader](ctx)
			if err != nil {
				return nil, err
			}
			resolver, err := graft.Dep[ports.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(ld, resolver, log, cfg.Externals), nil
		},
	})
}
