package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"github.com/spf13/pflag"
)

const NodeID graft.ID = "adapter.config"

// pathOverride and flagOverride let the CLI point the graft node at an
// explicit config file and parsed flags before the graph executes.
var (
	pathOverride string
	flagOverride *pflag.FlagSet
)

// SetPath overrides the config file used when the graft node runs.
func SetPath(path string) {
	pathOverride = path
}

// SetFlags supplies parsed CLI flags so they outrank file and environment
// when the graft node runs.
func SetFlags(flags *pflag.FlagSet) {
	flagOverride = flags
}

func init() {
	graft.Register(graft.Node[*Config]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (*Config, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			return Load(pathOverride, cwd, flagOverride)
		},
	})
}
