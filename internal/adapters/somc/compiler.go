// Package somc implements the built-in compiler collaborator. It translates
// .som sources into CommonJS-style target code and passes already-compiled
// sources through untouched, emitting a source map for each file.
package somc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/sompack/internal/sourcemap"
)

var (
	_ ports.Compiler      = (*Compiler)(nil)
	_ ports.ImportScanner = (*Compiler)(nil)
)

// SourceExtension is the extension the translator accepts as source syntax.
// Anything else is treated as already-compiled target code.
const SourceExtension = ".som"

// Compiler is stateless and safe for concurrent use.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile translates one file. Source problems are reported as diagnostics
// in the result, never as a Go error; a cancelled context surfaces as a
// critical system diagnostic.
func (c *Compiler) Compile(ctx context.Context, path string, source string) domain.CompiledOutput {
	if err := ctx.Err(); err != nil {
		return domain.CompiledOutput{Errors: []domain.Diagnostic{systemDiagnostic(path, err)}}
	}
	if filepath.Ext(path) == SourceExtension {
		return c.compileSom(ctx, path, source)
	}
	return c.passThrough(path, source)
}

func systemDiagnostic(path string, err error) domain.Diagnostic {
	return domain.Diagnostic{
		File:     path,
		Line:     1,
		Column:   1,
		Category: domain.CategorySystem,
		Severity: domain.SeverityCritical,
		Message:  "compilation aborted: " + err.Error(),
	}
}

// exportRef defers validation of exported names until the whole file has
// been seen, so exports may precede their definitions.
type exportRef struct {
	name string
	line int
	col  int
}

// openBlock remembers where a fn was opened for unclosed-block reporting.
type openBlock struct {
	line int
}

// compileSom translates the line-oriented .som syntax. Each source line
// produces exactly one generated line, and every non-empty generated line
// carries a mapping segment back to the source line and its indentation.
func (c *Compiler) compileSom(ctx context.Context, path string, source string) domain.CompiledOutput {
	var (
		out      strings.Builder
		errors   []domain.Diagnostic
		warnings []domain.Diagnostic
		defined  = map[string]struct{}{}
		exports  []exportRef
		blocks   []openBlock
		seenCode bool
	)

	gen := sourcemap.NewGenerator(strings.TrimSuffix(filepath.Base(path), SourceExtension) + ".js")
	srcIdx := gen.AddSource(path, &source)

	fail := func(line, col int, msg, suggestion string) {
		errors = append(errors, domain.Diagnostic{
			File:       path,
			Line:       line,
			Column:     col,
			Category:   domain.CategorySyntax,
			Severity:   domain.SeverityError,
			Message:    msg,
			Suggestion: suggestion,
		})
	}
	warn := func(line, col int, msg, suggestion string) {
		warnings = append(warnings, domain.Diagnostic{
			File:       path,
			Line:       line,
			Column:     col,
			Category:   domain.CategoryValidation,
			Severity:   domain.SeverityWarning,
			Message:    msg,
			Suggestion: suggestion,
		})
	}

	lines := strings.Split(source, "\n")
	for i, raw := range lines {
		if err := ctx.Err(); err != nil {
			errors = append(errors, systemDiagnostic(path, err))
			break
		}
		if i > 0 {
			out.WriteByte('\n')
		}

		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)
		indent := raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]
		col := len(indent) + 1

		emit := func(code string) {
			if code == "" {
				return
			}
			gen.AddSegment(i, len(indent), srcIdx, i, len(indent))
			out.WriteString(indent)
			out.WriteString(code)
		}

		switch {
		case trimmed == "":

		case strings.HasPrefix(trimmed, "#"):
			emit("//" + strings.TrimPrefix(trimmed, "#"))

		case trimmed == "use" || strings.HasPrefix(trimmed, "use "):
			if seenCode {
				warn(lineNo, col, "import appears after other statements",
					"move use statements to the top of the file")
			}
			spec, alias, ok := parseUse(trimmed)
			if !ok {
				fail(lineNo, col, "malformed use statement",
					`write use "<specifier>" or use "<specifier>" as <name>`)
				break
			}
			if alias == "" {
				emit(fmt.Sprintf("require(%q);", spec))
				break
			}
			if len(blocks) == 0 {
				defined[alias] = struct{}{}
			}
			emit(fmt.Sprintf("const %s = require(%q);", alias, spec))

		case trimmed == "fn" || strings.HasPrefix(trimmed, "fn "):
			seenCode = true
			name, params, ok := parseFn(trimmed)
			if !ok {
				fail(lineNo, col, "malformed fn statement",
					"write fn <name>(<params>)")
				break
			}
			if len(blocks) == 0 {
				defined[name] = struct{}{}
			}
			blocks = append(blocks, openBlock{line: lineNo})
			emit(fmt.Sprintf("function %s(%s) {", name, params))

		case trimmed == "end":
			seenCode = true
			if len(blocks) == 0 {
				fail(lineNo, col, "end without matching fn", "")
				break
			}
			blocks = blocks[:len(blocks)-1]
			emit("}")

		case strings.HasPrefix(trimmed, "let "):
			seenCode = true
			name, expr, ok := parseLet(trimmed)
			if !ok {
				fail(lineNo, col, "malformed let statement",
					"write let <name> = <expression>")
				break
			}
			if len(blocks) == 0 {
				defined[name] = struct{}{}
			}
			emit(fmt.Sprintf("let %s = %s;", name, expr))

		case trimmed == "return" || strings.HasPrefix(trimmed, "return "):
			seenCode = true
			if len(blocks) == 0 {
				fail(lineNo, col, "return outside fn", "")
				break
			}
			emit(strings.TrimSpace(trimmed) + ";")

		case strings.HasPrefix(trimmed, "emit "):
			seenCode = true
			emit("console.log(" + strings.TrimSpace(trimmed[len("emit "):]) + ");")

		case trimmed == "export" || strings.HasPrefix(trimmed, "export "):
			seenCode = true
			if len(blocks) > 0 {
				fail(lineNo, col, "export inside fn", "move the export to the top level")
				break
			}
			names, ok := parseExportList(trimmed)
			if !ok {
				fail(lineNo, col, "malformed export statement",
					"write export <name>[, <name>...]")
				break
			}
			stmts := make([]string, len(names))
			for j, name := range names {
				exports = append(exports, exportRef{name: name, line: lineNo, col: col})
				stmts[j] = fmt.Sprintf("exports.%s = %s;", name, name)
			}
			emit(strings.Join(stmts, " "))

		default:
			seenCode = true
			fail(lineNo, col, "unrecognized statement",
				"expected use, fn, end, let, return, emit, export or a # comment")
		}
	}

	for _, block := range blocks {
		fail(block.line, 1, "fn is never closed", "add a matching end")
	}
	for _, ref := range exports {
		if _, ok := defined[ref.name]; !ok {
			warn(ref.line, ref.col, fmt.Sprintf("export of undefined name %q", ref.name),
				fmt.Sprintf("define %s with let, fn or use before exporting it", ref.name))
		}
	}

	mapJSON, err := gen.Generate().JSON()
	if err != nil {
		errors = append(errors, systemDiagnostic(path, err))
	}
	return domain.CompiledOutput{
		Code:      out.String(),
		Errors:    errors,
		Warnings:  warnings,
		SourceMap: mapJSON,
	}
}

// parseUse splits `use "spec"` / `use "spec" as alias`.
func parseUse(stmt string) (spec, alias string, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(stmt, "use"))
	if len(rest) < 2 || rest[0] != '"' {
		return "", "", false
	}
	closing := strings.IndexByte(rest[1:], '"')
	if closing < 0 {
		return "", "", false
	}
	spec = rest[1 : 1+closing]
	if spec == "" {
		return "", "", false
	}
	tail := strings.TrimSpace(rest[closing+2:])
	if tail == "" {
		return spec, "", true
	}
	alias, found := strings.CutPrefix(tail, "as ")
	alias = strings.TrimSpace(alias)
	if !found || !isIdentifier(alias) {
		return "", "", false
	}
	return spec, alias, true
}

// parseFn splits `fn name(params)`.
func parseFn(stmt string) (name, params string, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(stmt, "fn"))
	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return "", "", false
	}
	name = strings.TrimSpace(rest[:open])
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(rest[open+1 : len(rest)-1]), true
}

// parseLet splits `let name = expr`.
func parseLet(stmt string) (name, expr string, ok bool) {
	rest := strings.TrimPrefix(stmt, "let ")
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(rest[:eq])
	expr = strings.TrimSpace(rest[eq+1:])
	if !isIdentifier(name) || expr == "" {
		return "", "", false
	}
	return name, expr, true
}

func parseExportList(stmt string) ([]string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(stmt, "export"))
	if rest == "" {
		return nil, false
	}
	parts := strings.Split(rest, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if !isIdentifier(name) {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
