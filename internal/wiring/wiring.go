// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/sompack/internal/adapters/breaker"
	_ "go.trai.ch/sompack/internal/adapters/config"
	_ "go.trai.ch/sompack/internal/adapters/fs"
	_ "go.trai.ch/sompack/internal/adapters/limiter"
	_ "go.trai.ch/sompack/internal/adapters/logger"
	_ "go.trai.ch/sompack/internal/adapters/somc"
	_ "go.trai.ch/sompack/internal/adapters/watcher"
	// Register app, engine and server nodes.
	_ "go.trai.ch/sompack/internal/app"
	_ "go.trai.ch/sompack/internal/engine/bundler"
	_ "go.trai.ch/sompack/internal/engine/loader"
	_ "go.trai.ch/sompack/internal/engine/registry"
	_ "go.trai.ch/sompack/internal/server"
)
