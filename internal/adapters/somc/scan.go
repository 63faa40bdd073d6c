package somc

import (
	"path/filepath"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/sourcemap"
)

// passThrough accepts already-compiled target code unchanged. The source is
// still parsed so syntax problems surface as diagnostics at load time rather
// than deep inside a bundle, and an identity source map is emitted so map
// composition treats every module uniformly.
func (c *Compiler) passThrough(path string, source string) domain.CompiledOutput {
	var errors []domain.Diagnostic
	if _, err := parser.ParseFile(nil, path, source, 0); err != nil {
		errors = parseDiagnostics(path, err)
	}

	gen := sourcemap.NewGenerator(filepath.Base(path))
	srcIdx := gen.AddSource(path, &source)
	for i, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		gen.AddSegment(i, 0, srcIdx, i, 0)
	}
	mapJSON, err := gen.Generate().JSON()
	if err != nil {
		errors = append(errors, systemDiagnostic(path, err))
	}

	return domain.CompiledOutput{
		Code:      source,
		Errors:    errors,
		SourceMap: mapJSON,
	}
}

func parseDiagnostics(path string, err error) []domain.Diagnostic {
	list, ok := err.(parser.ErrorList)
	if !ok {
		return []domain.Diagnostic{{
			File:     path,
			Line:     1,
			Column:   1,
			Category: domain.CategorySyntax,
			Severity: domain.SeverityError,
			Message:  err.Error(),
		}}
	}
	diags := make([]domain.Diagnostic, 0, len(list))
	for _, perr := range list {
		diags = append(diags, domain.Diagnostic{
			File:     path,
			Line:     perr.Position.Line,
			Column:   perr.Position.Column,
			Category: domain.CategorySyntax,
			Severity: domain.SeverityError,
			Message:  perr.Message,
		})
	}
	return diags
}

// ScanImports extracts import specifiers without running a full compile.
// For .som sources it reads use statements; for target code it walks the
// syntax tree for require calls with a single string-literal argument.
func (c *Compiler) ScanImports(path string, source string) []string {
	if filepath.Ext(path) == SourceExtension {
		return scanSomImports(source)
	}
	return scanRequireTargets(path, source)
}

func scanSomImports(source string) []string {
	var specs []string
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "use" && !strings.HasPrefix(trimmed, "use ") {
			continue
		}
		if spec, _, ok := parseUse(trimmed); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

func scanRequireTargets(path, source string) []string {
	prog, err := parser.ParseFile(nil, path, source, 0)
	if err != nil {
		return nil
	}
	var specs []string
	ast.Walk(requireVisitor(func(target *ast.StringLiteral) {
		specs = append(specs, string(target.Value))
	}), prog)
	return specs
}

// requireVisitor calls fn for the argument of every require("...") call.
type requireVisitor func(target *ast.StringLiteral)

func (v requireVisitor) Enter(n ast.Node) ast.Visitor {
	call, ok := n.(*ast.CallExpression)
	if !ok {
		return v
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok || callee.Name != "require" || len(call.ArgumentList) != 1 {
		return v
	}
	if lit, ok := call.ArgumentList[0].(*ast.StringLiteral); ok {
		v(lit)
	}
	return v
}

func (v requireVisitor) Exit(ast.Node) {}
