// Package loader implements concurrent module loading: read, compile,
// resolve imports, register, cache. One load per canonical id at a time.
package loader

import (
	"context"
	"errors"
	"os"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go.trai.ch/sompack/internal/adapters/cache"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/registry"
	"go.trai.ch/zerr"
)

// Options tunes a Loader.
type Options struct {
	// Policy selects how detected dependency cycles are treated.
	Policy domain.CircularPolicy

	// Timeout bounds every top-level load operation. Zero disables it.
	Timeout time.Duration

	// MaxCachedModules bounds the record cache.
	MaxCachedModules int

	// Externals names packages provided at runtime. Imports of them are
	// not treated as dependencies and never loaded.
	Externals []string
}

// Loader loads modules and their dependency closures. Concurrent loads of
// the same canonical id share one flight; distinct ids load in parallel up
// to the limiter's slot budget.
type Loader struct {
	opts      Options
	resolver  ports.Resolver
	compiler  ports.Compiler
	scanner   ports.ImportScanner
	registry  *registry.Registry
	limiter   *limiter.Limiter
	breaker   ports.Breaker
	logger    ports.Logger
	cache     *cache.LRU
	externals domain.ExternalSet
	flights   singleflight.Group
}

// New creates a Loader and wires its record cache into the limiter's
// budget snapshots.
func New(
	opts Options,
	resolver ports.Resolver,
	compiler ports.Compiler,
	scanner ports.ImportScanner,
	reg *registry.Registry,
	lim *limiter.Limiter,
	brk ports.Breaker,
	logger ports.Logger,
) (*Loader, error) {
	l := &Loader{
		opts:      opts,
		resolver:  resolver,
		compiler:  compiler,
		scanner:   scanner,
		registry:  reg,
		limiter:   lim,
		breaker:   brk,
		logger:    logger,
		externals: domain.NewExternalSet(opts.Externals),
	}
	c, err := cache.New(opts.MaxCachedModules, l.onEvict)
	if err != nil {
		return nil, err
	}
	l.cache = c
	lim.SetCacheProbe(c.Len)
	return l, nil
}

// onEvict keeps registry, cache and budget consistent when a record leaves
// the cache for any reason. Dependents of the evicted module hold edges to
// output that no longer exists, so the whole dependent closure is
// invalidated with it and reloads on next use. The registry lookup is the
// re-entrancy guard: ids cleared by an outer cascade are gone from the
// graph, so their nested callbacks only release budget.
func (l *Loader) onEvict(id string, rec *domain.ModuleRecord) {
	if rec != nil {
		l.limiter.ReleaseMemory(rec.Size)
	}
	for _, target := range l.registry.Invalidate(id) {
		if target != id {
			l.cache.Remove(target)
		}
	}
	l.logger.Debug("module evicted", "module", id)
}

// Load resolves a specifier from fromFile and loads the module with its
// whole dependency closure. fromFile may be empty for entry points.
func (l *Loader) Load(ctx context.Context, specifier, fromFile string) (*domain.ModuleRecord, error) {
	return l.loadEntry(ctx, specifier, fromFile, l.externals)
}

// LoadWithExternals behaves like Load with extra runtime-provided packages
// on top of the configured ones, for bundle invocations that extend the
// externals list per call.
func (l *Loader) LoadWithExternals(ctx context.Context, specifier, fromFile string, extra []string) (*domain.ModuleRecord, error) {
	if len(extra) == 0 {
		return l.Load(ctx, specifier, fromFile)
	}
	merged := make(domain.ExternalSet, len(l.externals)+len(extra))
	for name := range l.externals {
		merged[name] = struct{}{}
	}
	for _, name := range extra {
		merged[name] = struct{}{}
	}
	return l.loadEntry(ctx, specifier, fromFile, merged)
}

func (l *Loader) loadEntry(ctx context.Context, specifier, fromFile string, externals domain.ExternalSet) (*domain.ModuleRecord, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	resolved, err := l.resolver.Resolve(specifier, fromFile)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, resolved.Path, nil, externals)
}

// Record returns the cached record for a canonical id, marking it
// recently used.
func (l *Loader) Record(id string) (*domain.ModuleRecord, bool) {
	return l.cache.Get(id)
}

// CachedModules returns the number of records currently cached.
func (l *Loader) CachedModules() int {
	return l.cache.Len()
}

// Invalidate drops a module and every transitive dependent from both the
// registry and the cache, so the next load starts from scratch. It returns
// the cleared ids.
func (l *Loader) Invalidate(id string) []string {
	cleared := l.registry.Invalidate(id)
	for _, target := range cleared {
		l.cache.Remove(target)
	}
	return cleared
}

// Purge drops every cached record and resets the registry to empty,
// implicit leaf nodes included.
func (l *Loader) Purge() {
	l.cache.Purge()
	l.registry.Clear()
}

// load walks one dependency path. The stack holds the ids currently being
// loaded on this path; meeting one again is a cycle and is classified
// before joining any in-flight load, so a cycle can never deadlock on its
// own flight. A cycle closing across two concurrent entry loads is
// invisible to either stack; those flights end up waiting on each other,
// which is why joining a flight also watches the context. Such loads fail
// with ErrTimeout once the operation deadline fires, not ErrCircular.
func (l *Loader) load(ctx context.Context, id string, stack []string, externals domain.ExternalSet) (*domain.ModuleRecord, error) {
	if i := slices.Index(stack, id); i >= 0 {
		return l.classifyCycle(slices.Clone(stack[i:]))
	}

	if rec, ok := l.cache.Get(id); ok {
		return rec, nil
	}

	ch := l.flights.DoChan(id, func() (any, error) {
		if rec, ok := l.cache.Get(id); ok {
			return rec, nil
		}
		return l.doLoad(ctx, id, stack, externals)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ModuleRecord), nil
	case <-ctx.Done():
		return nil, l.deadline(ctx, id)
	}
}

// classifyCycle applies the configured policy to a detected cycle. The
// cycle starts at the revisited id. Under warn and ignore the back-edge is
// satisfied by a placeholder record; the real module completes in the
// frame further up the stack.
func (l *Loader) classifyCycle(cycle []string) (*domain.ModuleRecord, error) {
	path := domain.CyclePath(cycle)
	switch l.opts.Policy {
	case domain.PolicyError:
		return nil, zerr.With(domain.ErrCircular, "cycle", path)
	case domain.PolicyWarn:
		l.logger.Warn("circular dependency detected", "cycle", path)
	}
	return &domain.ModuleRecord{
		ID:          cycle[0],
		Placeholder: true,
		LoadedAt:    time.Now(),
	}, nil
}

// doLoad performs the actual load of one module. Read, import scan,
// import resolution and compilation run under one parallelism slot; the
// slot is released before descending into dependencies so deep chains
// cannot exhaust the slot budget and deadlock.
func (l *Loader) doLoad(ctx context.Context, id string, stack []string, externals domain.ExternalSet) (*domain.ModuleRecord, error) {
	release, err := l.limiter.AcquireSlot(ctx)
	if err != nil {
		return nil, zerr.With(err, "module", id)
	}

	source, err := l.readSource(id)
	if err != nil {
		release()
		return nil, err
	}

	deps, err := l.resolveImports(id, source, externals)
	if err != nil {
		release()
		return nil, err
	}

	output, err := l.compile(ctx, id, source)
	release()
	if err != nil {
		return nil, err
	}
	if err := l.deadline(ctx, id); err != nil {
		return nil, err
	}

	if err := l.loadChildren(ctx, deps, append(slices.Clone(stack), id), externals); err != nil {
		return nil, err
	}
	if err := l.deadline(ctx, id); err != nil {
		return nil, err
	}

	rec := &domain.ModuleRecord{
		ID:           id,
		Output:       output,
		Dependencies: deps,
		LoadedAt:     time.Now(),
		Fingerprint:  xxhash.Sum64String(source),
		Size:         int64(len(source) + len(output.Code) + len(output.SourceMap)),
	}

	if err := l.registry.Register(rec); err != nil {
		return nil, err
	}
	if err := l.reserve(rec); err != nil {
		l.registry.Remove(id)
		return nil, err
	}
	if !l.registry.Has(id) {
		// Eviction under memory pressure hit one of rec's dependencies and
		// the cascade took this registration with it. Skip caching so the
		// record is rebuilt against a reloaded dependency on next use.
		return rec, nil
	}
	l.cache.Add(id, rec)

	l.logger.Debug("module loaded",
		"module", id,
		"dependencies", len(deps),
		"level", rec.Level,
	)
	return rec, nil
}

func (l *Loader) loadChildren(ctx context.Context, deps []string, stack []string, externals domain.ExternalSet) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, dep := range deps {
		g.Go(func() error {
			_, err := l.load(gctx, dep, stack, externals)
			return err
		})
	}
	return g.Wait()
}

// readSource reads the module file under the filesystem breaker, charging
// one handle against the budget for the duration.
func (l *Loader) readSource(id string) (string, error) {
	if err := l.limiter.AcquireHandle(); err != nil {
		return "", zerr.With(err, "module", id)
	}
	defer l.limiter.ReleaseHandle()

	var data []byte
	err := l.breaker.Do(ports.BreakerFilesystem, func() error {
		var readErr error
		data, readErr = os.ReadFile(id)
		return readErr
	})
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to read module source"), "module", id)
	}
	return string(data), nil
}

// resolveImports pre-scans the source and resolves each distinct specifier
// exactly once, producing canonical dependency ids in import order.
func (l *Loader) resolveImports(id, source string, externals domain.ExternalSet) ([]string, error) {
	var deps []string
	seen := make(map[string]struct{})
	for _, spec := range l.scanner.ScanImports(id, source) {
		if _, dup := seen[spec]; dup {
			continue
		}
		seen[spec] = struct{}{}

		if externals.Contains(spec) {
			// Provided at runtime, not part of the dependency closure.
			continue
		}

		resolved, err := l.resolver.Resolve(spec, id)
		if err != nil {
			return nil, zerr.With(err, "module", id)
		}
		if !slices.Contains(deps, resolved.Path) {
			deps = append(deps, resolved.Path)
		}
	}
	return deps, nil
}

// compile invokes the compiler under its breaker. Source problems stay
// diagnostics in the output; only critical system diagnostics count as
// breaker failures.
func (l *Loader) compile(ctx context.Context, id, source string) (domain.CompiledOutput, error) {
	var output domain.CompiledOutput
	err := l.breaker.Do(ports.BreakerCompiler, func() error {
		output = l.compiler.Compile(ctx, id, source)
		for _, diag := range output.Errors {
			if diag.Severity == domain.SeverityCritical {
				return zerr.With(domain.ErrCompilation, "module", id, "detail", diag.Message)
			}
		}
		return nil
	})
	if err != nil && errors.Is(err, domain.ErrBreakerOpen) {
		return domain.CompiledOutput{}, zerr.With(err, "module", id)
	}
	return output, err
}

// reserve charges the record's footprint against the memory budget,
// evicting least-recently-used records until it fits or nothing is left
// to evict.
func (l *Loader) reserve(rec *domain.ModuleRecord) error {
	for {
		err := l.limiter.ReserveMemory(rec.Size)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrResourceExhausted) || !l.cache.EvictOldest() {
			return zerr.With(err, "module", rec.ID)
		}
	}
}

func (l *Loader) deadline(ctx context.Context, id string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return zerr.With(domain.ErrTimeout, "module", id)
	default:
		return zerr.With(zerr.Wrap(err, "load aborted"), "module", id)
	}
}
