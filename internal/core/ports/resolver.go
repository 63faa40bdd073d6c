package ports

import "go.trai.ch/sompack/internal/core/domain"

// Resolver maps a (specifier, originating file) pair to a canonical module.
// Resolution is a pure function of its arguments and the filesystem
// snapshot; it must not consult the process working directory.
//
//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type Resolver interface {
	// Resolve returns the canonical module for the specifier as written in
	// fromFile. It fails with domain.ErrResolution when nothing matches.
	Resolve(specifier, fromFile string) (domain.ResolvedModule, error)
}

// ManifestReader reads the fields the resolver needs from a package
// manifest file in the given directory.
type ManifestReader interface {
	Read(dir string) (domain.PackageManifest, error)
}
