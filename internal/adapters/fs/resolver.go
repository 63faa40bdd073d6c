// Package fs implements filesystem-backed module resolution.
package fs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Resolver = (*Resolver)(nil)

// externalDir is the package directory searched along ancestors.
const externalDir = "node_modules"

// Options configures a Resolver.
type Options struct {
	// BaseDir is the absolute project root. Specifiers resolved from entry
	// points (empty fromFile) are anchored here, never at the process
	// working directory.
	BaseDir string

	// Extensions are the source extensions probed in order, dot included.
	Extensions []string

	// CompiledExtension maps back to a sibling source file when present,
	// letting already-compiled and not-yet-compiled trees merge.
	CompiledExtension string

	// Externals is the explicit allow-list of external package names.
	// It takes precedence over node_modules auto-detection, which in turn
	// takes precedence over project-internal resolution.
	Externals []string
}

type memoKey struct {
	specifier string
	fromFile  string
}

// Resolver maps (specifier, fromFile) pairs to canonical modules. Results
// are memoized: a given pair is resolved at most once, and identical inputs
// always produce identical output independent of the working directory.
type Resolver struct {
	opts      Options
	manifests ports.ManifestReader
	externals map[string]struct{}

	mu   sync.RWMutex
	memo map[memoKey]domain.ResolvedModule
}

// NewResolver creates a Resolver.
func NewResolver(opts Options, manifests ports.ManifestReader) *Resolver {
	externals := make(map[string]struct{}, len(opts.Externals))
	for _, name := range opts.Externals {
		externals[name] = struct{}{}
	}
	return &Resolver{
		opts:      opts,
		manifests: manifests,
		externals: externals,
		memo:      make(map[memoKey]domain.ResolvedModule),
	}
}

// Resolve maps a specifier written in fromFile to a canonical module.
func (r *Resolver) Resolve(specifier, fromFile string) (domain.ResolvedModule, error) {
	key := memoKey{specifier: specifier, fromFile: fromFile}

	r.mu.RLock()
	cached, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err := r.resolve(specifier, fromFile)
	if err != nil {
		return domain.ResolvedModule{}, err
	}

	r.mu.Lock()
	r.memo[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// resolve applies the fixed precedence order in a single branch:
// allow-list, then node_modules auto-detection for bare specifiers, then
// project-internal paths.
func (r *Resolver) resolve(specifier, fromFile string) (domain.ResolvedModule, error) {
	switch {
	case r.isAllowListed(specifier):
		return r.resolveExternal(specifier, fromFile)
	case isBare(specifier):
		return r.resolveExternal(specifier, fromFile)
	default:
		return r.resolveProject(specifier, fromFile)
	}
}

func (r *Resolver) isAllowListed(specifier string) bool {
	if _, ok := r.externals[specifier]; ok {
		return true
	}
	_, ok := r.externals[packageName(specifier)]
	return ok
}

// isBare reports whether the specifier is neither relative nor absolute.
func isBare(specifier string) bool {
	return !strings.HasPrefix(specifier, "./") &&
		!strings.HasPrefix(specifier, "../") &&
		specifier != "." && specifier != ".." &&
		!filepath.IsAbs(specifier)
}

// packageName extracts the package part of a bare specifier, keeping the
// scope for scoped packages.
func packageName(specifier string) string {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// resolveProject resolves a relative or absolute specifier against the
// directory of fromFile (or the base directory for entry points).
func (r *Resolver) resolveProject(specifier, fromFile string) (domain.ResolvedModule, error) {
	base := filepath.Join(r.originDir(fromFile), specifier)
	if filepath.IsAbs(specifier) {
		base = filepath.Clean(specifier)
	}

	if path, ok := r.probe(base); ok {
		return domain.ResolvedModule{
			Path:      path,
			Extension: filepath.Ext(path),
		}, nil
	}

	return domain.ResolvedModule{}, zerr.With(zerr.With(domain.ErrResolution,
		"specifier", specifier),
		"from", fromFile,
	)
}

func (r *Resolver) originDir(fromFile string) string {
	if fromFile == "" {
		return r.opts.BaseDir
	}
	return filepath.Dir(fromFile)
}

// probe tries the candidate path as written, with each configured
// extension, and as a directory with an index file. A compiled-output
// extension is mapped back to the sibling source when that source exists.
func (r *Resolver) probe(base string) (string, bool) {
	if mapped, ok := r.mapCompiled(base); ok {
		return mapped, true
	}
	if fileExists(base) && filepath.Ext(base) != "" {
		return filepath.Clean(base), true
	}
	for _, ext := range r.opts.Extensions {
		if candidate := base + ext; fileExists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	for _, ext := range r.opts.Extensions {
		if candidate := filepath.Join(base, "index"+ext); fileExists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

// mapCompiled redirects a compiled-output path to its sibling source file,
// so bundles can merge already-compiled and not-yet-compiled trees.
func (r *Resolver) mapCompiled(base string) (string, bool) {
	ext := r.opts.CompiledExtension
	if ext == "" || !strings.HasSuffix(base, ext) {
		return "", false
	}
	stem := strings.TrimSuffix(base, ext)
	for _, srcExt := range r.opts.Extensions {
		if candidate := stem + srcExt; fileExists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	if fileExists(base) {
		return filepath.Clean(base), true
	}
	return "", false
}

// resolveExternal searches ancestor node_modules directories for the
// package, starting at fromFile's directory, and resolves the manifest's
// entry point. All discovery paths (allow-list, auto-detection) converge here.
func (r *Resolver) resolveExternal(specifier, fromFile string) (domain.ResolvedModule, error) {
	pkg := packageName(specifier)
	subpath := strings.TrimPrefix(strings.TrimPrefix(specifier, pkg), "/")

	for dir := r.originDir(fromFile); ; dir = filepath.Dir(dir) {
		pkgDir := filepath.Join(dir, externalDir, pkg)
		if dirExists(pkgDir) {
			resolved, err := r.resolvePackage(pkgDir, pkg, subpath)
			if err != nil {
				return domain.ResolvedModule{}, err
			}
			return resolved, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return domain.ResolvedModule{}, zerr.With(zerr.With(zerr.With(domain.ErrResolution,
		"specifier", specifier),
		"from", fromFile),
		"package", pkg,
	)
}

func (r *Resolver) resolvePackage(pkgDir, pkg, subpath string) (domain.ResolvedModule, error) {
	entry := subpath
	if entry == "" {
		manifest, err := r.manifests.Read(pkgDir)
		if err != nil {
			return domain.ResolvedModule{}, err
		}
		entry = manifest.Exports
		if entry == "" {
			entry = manifest.Main
		}
		if entry == "" {
			entry = "index"
		}
	}

	path, ok := r.probe(filepath.Join(pkgDir, entry))
	if !ok {
		return domain.ResolvedModule{}, zerr.With(zerr.With(domain.ErrResolution,
			"package", pkg),
			"entry", entry,
		)
	}
	return domain.ResolvedModule{
		Path:        path,
		Extension:   filepath.Ext(path),
		IsExternal:  true,
		PackageName: pkg,
	}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
