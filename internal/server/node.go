package server

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/app"
	"go.trai.ch/sompack/internal/core/ports"
)

// NodeID is the graft node for the management server.
const NodeID graft.ID = "server.management"

func init() {
	graft.Register(graft.Node[*Server]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, app.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Server, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			application, err := graft.Dep[*app.App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(cfg.Server.Addr, application, log), nil
		},
	})
}
