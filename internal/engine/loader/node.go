package loader

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/breaker"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/fs"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/adapters/somc"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/registry"
)

// NodeID is the graft node for the module loader.
const NodeID graft.ID = "engine.loader"

func init() {
	graft.Register(graft.Node[*Loader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			fs.NodeID,
			somc.NodeID,
			somc.ScannerNodeID,
			registry.NodeID,
			limiter.NodeID,
			breaker.NodeID,
		},
		Run: func(ctx context.Context) (*Loader, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			resolver, err := graft.Dep[ports.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			compiler, err := graft.Dep[ports.Compiler](ctx)
			if err != nil {
				return nil, err
			}
			scanner, err := graft.Dep[ports.ImportScanner](ctx)
			if err != nil {
				return nil, err
			}
			reg, err := graft.Dep[*registry.Registry](ctx)
			if err != nil {
				return nil, err
			}
			lim, err := graft.Dep[*limiter.Limiter](ctx)
			if err != nil {
				return nil, err
			}
			brk, err := graft.Dep[ports.Breaker](ctx)
			if err != nil {
				return nil, err
			}
			return New(Options{
				Policy:           cfg.CircularPolicy,
				Timeout:          cfg.OperationTimeout,
				MaxCachedModules: cfg.Limits.MaxCachedModules,
				Externals:        cfg.Externals,
			}, resolver, compiler, scanner, reg, lim, brk, log)
		},
	})
}
