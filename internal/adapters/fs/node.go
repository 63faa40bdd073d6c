package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/core/ports"
)

const (
	// NodeID is the graft node for the module resolver.
	NodeID graft.ID = "adapter.fs.resolver"
	// ManifestNodeID is the graft node for the package manifest reader.
	ManifestNodeID graft.ID = "adapter.fs.manifest"
)

func init() {
	graft.Register(graft.Node[ports.ManifestReader]{
		ID:        ManifestNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ManifestReader, error) {
			return NewManifestReader(), nil
		},
	})

	graft.Register(graft.Node[ports.Resolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, ManifestNodeID},
		Run: func(ctx context.Context) (ports.Resolver, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			manifests, err := graft.Dep[ports.ManifestReader](ctx)
			if err != nil {
				return nil, err
			}
			return NewResolver(Options{
				BaseDir:           cfg.BaseDir,
				Extensions:        cfg.Extensions,
				CompiledExtension: cfg.CompiledExtension,
				Externals:         cfg.Externals,
			}, manifests), nil
		},
	})
}
