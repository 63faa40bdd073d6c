package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/breaker"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/fs"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/adapters/watcher"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/bundler"
	"go.trai.ch/sompack/internal/engine/loader"
	"go.trai.ch/sompack/internal/engine/registry"
)

const (
	// NodeID is the graft node for the orchestrator.
	NodeID graft.ID = "app.main"
	// ComponentsNodeID is the graft node for the CLI-facing components.
	ComponentsNodeID graft.ID = "app.components"
)

// Components provides controlled access to the pieces the CLI layer needs.
type Components struct {
	App    *App
	Logger ports.Logger
	Config *config.Config
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			fs.NodeID,
			loader.NodeID,
			bundler.NodeID,
			registry.NodeID,
			limiter.NodeID,
			breaker.NodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID, logger.NodeID, config.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: application, Logger: log, Config: cfg}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
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
	ld, err := graft.Dep[*loader.Loader](ctx)
	if err != nil {
		return nil, err
	}
	bd, err := graft.Dep[*bundler.Bundler](ctx)
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
	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}
	return New(cfg, log, resolver, ld, bd, reg, lim, brk, w), nil
}
