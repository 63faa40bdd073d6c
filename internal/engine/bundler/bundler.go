// Package bundler serializes a loaded dependency closure into one
// self-contained artifact: a module map keyed by canonical id plus a
// minimal runtime require stub.
package bundler

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/engine/loader"
	"go.trai.ch/sompack/internal/sourcemap"
	"go.trai.ch/zerr"
)

const jsMediaType = "application/javascript"

// Bundler builds bundles out of loaded module records.
type Bundler struct {
	loader    *loader.Loader
	resolver  ports.Resolver
	logger    ports.Logger
	minifier  *minify.M
	externals []string
}

// New creates a Bundler. externals are the runtime-provided packages from
// configuration, merged with per-bundle externals on every call.
func New(ld *loader.Loader, resolver ports.Resolver, logger ports.Logger, externals []string) *Bundler {
	m := minify.New()
	m.AddFunc(jsMediaType, js.Minify)
	return &Bundler{
		loader:    ld,
		resolver:  resolver,
		logger:    logger,
		minifier:  m,
		externals: externals,
	}
}

// unit is one module prepared for emission: its code with require targets
// rewritten to canonical ids, plus the column shifts those splices caused.
type unit struct {
	id    string
	rec   *domain.ModuleRecord
	code  string
	edits []edit
}

// Bundle loads the entry's closure and serializes it. Compile errors from
// every module in the closure are aggregated into a single failure; nothing
// is emitted unless the whole closure is clean.
func (b *Bundler) Bundle(ctx context.Context, opts domain.BundleOptions) (domain.BundleArtifact, error) {
	if err := b.checkFormat(opts); err != nil {
		return domain.BundleArtifact{}, err
	}

	entry, err := b.loader.LoadWithExternals(ctx, opts.Entry, "", opts.Externals)
	if err != nil {
		return domain.BundleArtifact{}, err
	}

	units, err := b.collect(ctx, entry.ID, domain.NewExternalSet(append(slices.Clone(b.externals), opts.Externals...)), opts.Externals)
	if err != nil {
		return domain.BundleArtifact{}, err
	}

	if err := b.aggregateDiagnostics(units); err != nil {
		return domain.BundleArtifact{}, err
	}

	return b.emit(units, entry.ID, opts)
}

func (b *Bundler) checkFormat(opts domain.BundleOptions) error {
	format := opts.Format
	if format == "" || format == domain.FormatModuleMap {
		return nil
	}
	if !opts.ForceFormat {
		return zerr.With(domain.ErrUnsupportedFormat,
			"format", format,
			"supported", domain.FormatModuleMap,
		)
	}
	b.logger.Warn("unsupported bundle format forced, emitting module map instead",
		"requested", format,
	)
	return nil
}

// collect walks the closure depth-first in require order, rewriting each
// module's require targets as it goes. Dependencies are emitted before
// their dependents; cycle back-edges are skipped, the runtime stub handles
// them. Specifiers on the externals allow-list are left untouched and
// their targets excluded from the bundle.
func (b *Bundler) collect(ctx context.Context, entryID string, externals domain.ExternalSet, extra []string) ([]unit, error) {
	var (
		units   []unit
		onStack = map[string]bool{}
		done    = map[string]bool{}
	)

	var visit func(id string) error
	visit = func(id string) error {
		if done[id] || onStack[id] {
			return nil
		}
		onStack[id] = true
		defer func() { onStack[id] = false }()

		rec, err := b.record(ctx, id, extra)
		if err != nil {
			return err
		}

		var children []string
		code, edits, err := rewriteRequires(id, rec.Output.Code, func(spec string) (string, bool) {
			if externals.Contains(spec) {
				return "", false
			}
			resolved, resolveErr := b.resolver.Resolve(spec, id)
			if resolveErr != nil {
				return "", false
			}
			children = append(children, resolved.Path)
			return resolved.Path, true
		})
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := visit(child); err != nil {
				return err
			}
		}

		done[id] = true
		units = append(units, unit{id: id, rec: rec, code: code, edits: edits})
		return nil
	}

	if err := visit(entryID); err != nil {
		return nil, err
	}
	return units, nil
}

// record fetches a module record, reloading it when the cache evicted it.
func (b *Bundler) record(ctx context.Context, id string, extra []string) (*domain.ModuleRecord, error) {
	if rec, ok := b.loader.Record(id); ok {
		return rec, nil
	}
	return b.loader.LoadWithExternals(ctx, id, "", extra)
}

// aggregateDiagnostics fails the bundle with every compile error across the
// closure, each carrying file, line, column and remediation hint. Warnings
// are logged and do not block.
func (b *Bundler) aggregateDiagnostics(units []unit) error {
	var details []string
	for _, u := range units {
		for _, diag := range u.rec.Output.Warnings {
			b.logger.Warn("compile warning",
				"file", diag.File,
				"line", diag.Line,
				"message", diag.Message,
			)
		}
		for _, diag := range u.rec.Output.Errors {
			detail := fmt.Sprintf("%s:%d:%d: %s", diag.File, diag.Line, diag.Column, diag.Message)
			if diag.Suggestion != "" {
				detail += " (" + diag.Suggestion + ")"
			}
			details = append(details, detail)
		}
	}
	if len(details) == 0 {
		return nil
	}
	return zerr.With(domain.ErrBundle,
		"errorCount", len(details),
		"errors", strings.Join(details, "\n"),
	)
}

// bundleWriter accumulates output text while tracking generated lines for
// source map composition.
type bundleWriter struct {
	b    strings.Builder
	next int
}

// writeLine appends one line and returns its zero-based line number.
func (w *bundleWriter) writeLine(s string) int {
	n := w.next
	w.b.WriteString(s)
	w.b.WriteByte('\n')
	w.next++
	return n
}

func (b *Bundler) emit(units []unit, entryID string, opts domain.BundleOptions) (domain.BundleArtifact, error) {
	w := &bundleWriter{}
	gen := sourcemap.NewGenerator("bundle.js")

	w.writeLine("(function() {")
	w.writeLine("var __modules = {")
	for _, u := range units {
		w.writeLine(strconv.Quote(u.id) + ": function(module, exports, require) {")
		if err := b.emitModuleBody(w, gen, u, opts); err != nil {
			return domain.BundleArtifact{}, err
		}
		w.writeLine("},")
	}
	w.writeLine("};")
	w.writeLine("var __cache = {};")
	w.writeLine("function __require(id) {")
	w.writeLine("var entry = __cache[id];")
	w.writeLine("if (entry) {")
	w.writeLine("return entry.exports;")
	w.writeLine("}")
	// The module object is cached before its factory runs, so a cyclic
	// require observes the in-progress exports instead of recursing forever.
	w.writeLine("var module = { exports: {} };")
	w.writeLine("__cache[id] = module;")
	w.writeLine("__modules[id](module, module.exports, __require);")
	w.writeLine("return module.exports;")
	w.writeLine("}")
	w.writeLine("__require(" + strconv.Quote(entryID) + ");")
	w.writeLine("})();")

	artifact := domain.BundleArtifact{Code: w.b.String()}
	if opts.SourceMaps {
		mapJSON, err := gen.Generate().JSON()
		if err != nil {
			return domain.BundleArtifact{}, err
		}
		artifact.Map = mapJSON
	}
	return artifact, nil
}

// emitModuleBody writes one module's factory body. Unminified code keeps
// its line structure and composes the module's own map with line and
// column offsets; minified code collapses to one line mapped at module
// granularity back to the source start.
func (b *Bundler) emitModuleBody(w *bundleWriter, gen *sourcemap.Generator, u unit, opts domain.BundleOptions) error {
	var modMap *sourcemap.Map
	if opts.SourceMaps && u.rec.Output.SourceMap != "" {
		parsed, err := sourcemap.Parse(u.rec.Output.SourceMap)
		if err != nil {
			return zerr.With(err, "module", u.id)
		}
		modMap = parsed
	}

	if opts.Minify {
		minified, err := b.minifier.String(jsMediaType, u.code)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "minification failed"), "module", u.id)
		}
		line := w.writeLine(minified)
		if modMap != nil {
			gen.AddSegment(line, 0, b.addSource(gen, modMap, 0, u.id, opts), 0, 0)
		}
		return nil
	}

	var decoded [][]sourcemap.Segment
	if modMap != nil {
		lines, err := modMap.DecodeMappings()
		if err != nil {
			return zerr.With(err, "module", u.id)
		}
		decoded = lines
	}

	for i, codeLine := range strings.Split(strings.TrimSuffix(u.code, "\n"), "\n") {
		line := w.writeLine(codeLine)
		if i >= len(decoded) {
			continue
		}
		for _, seg := range decoded[i] {
			if !seg.HasSource {
				continue
			}
			srcIdx := b.addSource(gen, modMap, seg.SrcIndex, u.id, opts)
			gen.AddSegment(line, shiftedCol(seg.GenCol, u.edits, i), srcIdx, seg.SrcLine, seg.SrcCol)
		}
	}
	return nil
}

// addSource registers a module map source in the bundle map, carrying the
// original content through when sources are inlined.
func (b *Bundler) addSource(gen *sourcemap.Generator, modMap *sourcemap.Map, idx int, fallback string, opts domain.BundleOptions) int {
	path := fallback
	if idx < len(modMap.Sources) {
		path = modMap.Sources[idx]
	}
	var content *string
	if opts.InlineSources && idx < len(modMap.SourcesContent) {
		content = modMap.SourcesContent[idx]
	}
	return gen.AddSource(path, content)
}

