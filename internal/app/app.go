// Package app implements the application layer for sompack.
package app

import (
	"context"
	"errors"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/adapters/watcher"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/bundler"
	"go.trai.ch/sompack/internal/engine/loader"
	"go.trai.ch/sompack/internal/engine/registry"
	"go.trai.ch/zerr"
)

// App is the orchestrator: it fronts the loader, bundler and registry with
// the operations the CLI and the management server call.
type App struct {
	cfg      *config.Config
	logger   ports.Logger
	resolver ports.Resolver
	loader   *loader.Loader
	bundler  *bundler.Bundler
	registry *registry.Registry
	limiter  *limiter.Limiter
	breaker  ports.Breaker
	watcher  ports.Watcher

	debouncer *watcher.Debouncer
}

// New creates an App instance.
func New(
	cfg *config.Config,
	logger ports.Logger,
	resolver ports.Resolver,
	ld *loader.Loader,
	bd *bundler.Bundler,
	reg *registry.Registry,
	lim *limiter.Limiter,
	brk ports.Breaker,
	w ports.Watcher,
) *App {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		loader:   ld,
		bundler:  bd,
		registry: reg,
		limiter:  lim,
		breaker:  brk,
		watcher:  w,
	}
	a.debouncer = watcher.NewDebouncer(watcher.DefaultDebounceWindow, a.invalidateBatch)
	return a
}

// LoadModule resolves a specifier from fromFile and loads its whole
// dependency closure. fromFile may be empty for entry points.
func (a *App) LoadModule(ctx context.Context, specifier, fromFile string) (*domain.ModuleRecord, error) {
	return a.loader.Load(ctx, specifier, fromFile)
}

// Bundle builds a bundle for the given options, falling back to the
// configured output defaults for anything left unset.
func (a *App) Bundle(ctx context.Context, opts domain.BundleOptions) (domain.BundleArtifact, error) {
	if opts.Format == "" {
		opts.Format = a.cfg.Bundle.Format
	}
	return a.bundler.Bundle(ctx, opts)
}

// Resolve maps a specifier as written in fromFile to its canonical module.
func (a *App) Resolve(specifier, fromFile string) (domain.ResolvedModule, error) {
	return a.resolver.Resolve(specifier, fromFile)
}

// Validate checks the loaded dependency graph for consistency.
func (a *App) Validate() domain.ValidationResult {
	return a.registry.Validate()
}

// Statistics summarizes the loaded dependency graph.
func (a *App) Statistics() domain.Statistics {
	return a.registry.Statistics()
}

// DependencyGraph returns the loaded graph as an adjacency list keyed by
// canonical id, dependencies sorted.
func (a *App) DependencyGraph() map[string][]string {
	return a.registry.Adjacency()
}

// CircularDependencies returns each distinct cycle in the loaded graph.
func (a *App) CircularDependencies() [][]string {
	return a.registry.DetectCycles()
}

// Budget returns a snapshot of the resource counters.
func (a *App) Budget() domain.ResourceBudget {
	return a.limiter.Snapshot()
}

// BreakerStates returns the current circuit breaker state per class.
func (a *App) BreakerStates() map[string]string {
	return a.breaker.States()
}

// BreakerTransitions returns the observed breaker transitions in order.
func (a *App) BreakerTransitions() []ports.BreakerTransition {
	return a.breaker.Transitions()
}

// Reset purges the module cache, clears the registry and closes every
// circuit breaker. Loaded state is rebuilt on demand afterwards.
func (a *App) Reset() {
	a.loader.Purge()
	a.breaker.Reset()
	a.logger.Info("state reset", "cachedModules", a.loader.CachedModules())
}

// Invalidate drops a module and its transitive dependents, returning the
// cleared canonical ids.
func (a *App) Invalidate(id string) []string {
	return a.loader.Invalidate(id)
}

// Config returns the immutable configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Watch starts watch mode: filesystem changes under the resolution base
// invalidate the changed module and its transitive dependents, debounced
// and deduplicated. It blocks until ctx is cancelled or the watcher stops.
func (a *App) Watch(ctx context.Context) error {
	if err := a.watcher.Start(ctx, a.cfg.BaseDir); err != nil {
		return zerr.Wrap(err, "failed to start filesystem watcher")
	}
	a.logger.Info("watching for changes", "dir", a.cfg.BaseDir)

	for event := range a.watcher.Events() {
		a.debouncer.Add(event.Path)
	}
	a.debouncer.Flush()
	return nil
}

// invalidateBatch handles one debounced batch of changed paths. Paths not
// loaded are ignored; paths whose content fingerprint is unchanged are
// skipped so editor touch events do not churn the cache.
func (a *App) invalidateBatch(paths []string) {
	for _, path := range paths {
		rec, ok := a.registry.Record(path)
		if !ok {
			continue
		}
		if data, err := os.ReadFile(path); err == nil && xxhash.Sum64(data) == rec.Fingerprint {
			a.logger.Debug("content unchanged, skipping invalidation", "module", path)
			continue
		}
		cleared := a.loader.Invalidate(path)
		a.logger.Info("invalidated after change", "module", path, "cleared", len(cleared))
	}
}

// Shutdown tears components down in order under the configured total
// deadline: the watcher stops first so no new invalidations arrive, pending
// invalidations flush, in-flight loads drain, then the breakers close.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cfg.Shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Shutdown)
		defer cancel()
	}

	var errs []error
	if err := a.watcher.Stop(); err != nil {
		errs = append(errs, zerr.Wrap(err, "failed to stop watcher"))
	}
	a.debouncer.Flush()

	if err := a.limiter.Drain(ctx); err != nil {
		errs = append(errs, err)
	}
	a.breaker.Reset()

	if err := errors.Join(errs...); err != nil {
		return zerr.Wrap(err, "shutdown did not complete cleanly")
	}
	a.logger.Info("shutdown complete")
	return nil
}
