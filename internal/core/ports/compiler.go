// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/sompack/internal/core/domain"
)

// Compiler turns one file's source text into target code plus diagnostics.
// It never fails outright: source problems are reported as diagnostics and
// internal faults as critical system diagnostics in the returned output.
//
//go:generate go run go.uber.org/mock/mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks
type Compiler interface {
	// Compile translates the source text of the file at path.
	Compile(ctx context.Context, path string, source string) domain.CompiledOutput
}

// ImportScanner extracts raw import specifiers from source text. The scan is
// cheap and runs before full compilation so dependency fan-out can start
// early. The path selects the syntax to scan for.
type ImportScanner interface {
	// ScanImports returns the specifiers imported by the given source, in order.
	ScanImports(path string, source string) []string
}
