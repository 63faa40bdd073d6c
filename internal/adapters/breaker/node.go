package breaker

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/core/ports"
)

// NodeID is the graft node for the circuit breaker registry.
const NodeID graft.ID = "adapter.breaker"

func init() {
	graft.Register(graft.Node[ports.Breaker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Breaker, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(Options{
				FailureThreshold: cfg.Breaker.FailureThreshold,
				Cooldown:         cfg.Breaker.Cooldown,
				HalfOpenProbes:   cfg.Breaker.HalfOpenProbes,
			}, log), nil
		},
	})
}
