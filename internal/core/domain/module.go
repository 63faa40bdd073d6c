// Package domain contains the core domain models for module resolution,
// loading and bundling.
package domain

import (
	"strings"
	"time"
)

// ResolvedModule is the result of resolving a specifier against an
// originating file. It is produced at most once per (specifier, fromFile)
// pair and reused afterwards.
type ResolvedModule struct {
	// Path is the canonical absolute path, the single identifier for the
	// module everywhere in the system.
	Path string

	// Extension is the file extension of the resolved file, including the dot.
	Extension string

	// IsExternal reports whether the module was resolved from a package
	// directory rather than the project tree.
	IsExternal bool

	// PackageName is the external package name, empty for project modules.
	PackageName string
}

// DiagnosticSeverity classifies how serious a compiler diagnostic is.
type DiagnosticSeverity string

const (
	SeverityCritical DiagnosticSeverity = "critical"
	SeverityError    DiagnosticSeverity = "error"
	SeverityWarning  DiagnosticSeverity = "warning"
)

// DiagnosticCategory classifies the origin of a compiler diagnostic.
type DiagnosticCategory string

const (
	CategorySyntax     DiagnosticCategory = "syntax"
	CategoryType       DiagnosticCategory = "type"
	CategoryResolution DiagnosticCategory = "resolution"
	CategorySystem     DiagnosticCategory = "system"
	CategoryValidation DiagnosticCategory = "validation"
	CategoryRuntime    DiagnosticCategory = "runtime"
)

// Diagnostic is a single compiler message tied to a source location.
type Diagnostic struct {
	File       string             `json:"file"`
	Line       int                `json:"line"`
	Column     int                `json:"column"`
	Category   DiagnosticCategory `json:"category"`
	Severity   DiagnosticSeverity `json:"severity"`
	Message    string             `json:"message"`
	Suggestion string             `json:"suggestion,omitempty"`
}

// CompiledOutput is what the Compiler collaborator returns for one file.
// The Compiler never fails outright: source problems travel as diagnostics.
type CompiledOutput struct {
	Code      string
	Errors    []Diagnostic
	Warnings  []Diagnostic
	SourceMap string
}

// ModuleRecord is the cached unit the Loader produces for one canonical id.
// Single writer per id; readers receive copies or must not mutate.
type ModuleRecord struct {
	// ID is the canonical absolute path of the module.
	ID string

	// Output is the compiled result for this module.
	Output CompiledOutput

	// Dependencies holds canonical ids in import order, never raw specifiers.
	Dependencies []string

	// Level is the module's depth in the dependency graph: 0 for leaves,
	// 1 + max(level of dependencies) otherwise.
	Level int

	// LoadedAt records when the module finished loading.
	LoadedAt time.Time

	// Placeholder marks a stub record substituted for the back-edge of a
	// circular dependency under the warn and ignore policies.
	Placeholder bool

	// Fingerprint is the xxhash of the source text, used by watch mode to
	// skip invalidation when file content did not actually change.
	Fingerprint uint64

	// Size is the approximate memory footprint in bytes, charged against
	// the resource budget while the record is cached.
	Size int64
}

// FormatModuleMap is the single first-class bundle output format: a
// self-contained module map with a runtime require stub.
const FormatModuleMap = "modulemap"

// BundleOptions controls a single bundle operation.
type BundleOptions struct {
	Entry         string
	Format        string
	ForceFormat   bool
	Minify        bool
	SourceMaps    bool
	InlineSources bool
	Externals     []string
}

// BundleArtifact is the self-contained output of a bundle operation.
type BundleArtifact struct {
	Code string
	Map  string
}

// PackageManifest carries the fields the resolver needs from a package
// manifest file.
type PackageManifest struct {
	Name    string
	Main    string
	Exports string
}

// ValidationResult is the outcome of a whole-graph consistency check.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ResourceBudget is a snapshot of live resource counters against ceilings.
type ResourceBudget struct {
	MemoryBytes    int64 `json:"memoryBytes"`
	MaxMemoryBytes int64 `json:"maxMemoryBytes"`
	OpenHandles    int64 `json:"openHandles"`
	MaxOpenHandles int64 `json:"maxOpenHandles"`
	CachedModules  int   `json:"cachedModules"`
	MaxCached      int   `json:"maxCachedModules"`
}

// Statistics summarizes the dependency graph for operators.
type Statistics struct {
	TotalModules         int     `json:"totalModules" yaml:"totalModules"`
	TotalDependencies    int     `json:"totalDependencies" yaml:"totalDependencies"`
	AverageDependencies  float64 `json:"averageDependencies" yaml:"averageDependencies"`
	MaxDependencyDepth   int     `json:"maxDependencyDepth" yaml:"maxDependencyDepth"`
	CircularDependencies int     `json:"circularDependencies" yaml:"circularDependencies"`
}

// ExternalSet matches import specifiers against an external package
// allow-list, by exact specifier or by package name with scope included.
type ExternalSet map[string]struct{}

// NewExternalSet builds a set from package names.
func NewExternalSet(names []string) ExternalSet {
	set := make(ExternalSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains reports whether the specifier names an allow-listed package.
func (s ExternalSet) Contains(spec string) bool {
	if _, ok := s[spec]; ok {
		return true
	}
	parts := strings.Split(spec, "/")
	pkg := parts[0]
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		pkg = parts[0] + "/" + parts[1]
	}
	_, ok := s[pkg]
	return ok
}

// CircularPolicy selects how the Loader treats a detected dependency cycle.
type CircularPolicy string

const (
	// PolicyError fails the whole load with the cycle path.
	PolicyError CircularPolicy = "error"
	// PolicyWarn logs the cycle path, substitutes a placeholder for the
	// back-edge and continues.
	PolicyWarn CircularPolicy = "warn"
	// PolicyIgnore substitutes a placeholder silently.
	PolicyIgnore CircularPolicy = "ignore"
)

// Valid reports whether p is a known policy.
func (p CircularPolicy) Valid() bool {
	switch p {
	case PolicyError, PolicyWarn, PolicyIgnore:
		return true
	}
	return false
}
