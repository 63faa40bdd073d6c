package bundler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"go.trai.ch/zerr"
)

// edit records one splice applied to a module's code: at (line, col) a
// literal of oldLen bytes grew or shrank by delta. Mapping segments behind
// the splice shift by delta.
type edit struct {
	line   int
	col    int
	oldLen int
	delta  int
}

// spliceSite is a require target literal found in the syntax tree, by byte
// offset into the code.
type spliceSite struct {
	offset  int
	length  int
	spec    string
	replace string
}

// rewriteRequires replaces every require("<spec>") target for which target
// returns a canonical id. The walk is over the syntax tree, so require-like
// text inside string literals or comments is never touched. Returned edits
// describe the column shifts for source map composition.
func rewriteRequires(path, code string, target func(spec string) (string, bool)) (string, []edit, error) {
	prog, err := parser.ParseFile(nil, path, code, 0)
	if err != nil {
		return "", nil, zerr.With(zerr.Wrap(err, "failed to parse module for require rewriting"), "module", path)
	}

	var sites []spliceSite
	ast.Walk(requireTargets(func(lit *ast.StringLiteral) {
		canonical, ok := target(string(lit.Value))
		if !ok {
			return
		}
		sites = append(sites, spliceSite{
			offset:  int(lit.Idx) - 1,
			length:  len(lit.Literal),
			spec:    string(lit.Value),
			replace: strconv.Quote(canonical),
		})
	}), prog)

	if len(sites) == 0 {
		return code, nil, nil
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].offset < sites[j].offset })

	lineStarts := newLineIndex(code)
	var out strings.Builder
	out.Grow(len(code))
	edits := make([]edit, 0, len(sites))
	prev := 0
	for _, site := range sites {
		out.WriteString(code[prev:site.offset])
		out.WriteString(site.replace)
		prev = site.offset + site.length

		line, col := lineStarts.position(site.offset)
		edits = append(edits, edit{
			line:   line,
			col:    col,
			oldLen: site.length,
			delta:  len(site.replace) - site.length,
		})
	}
	out.WriteString(code[prev:])
	return out.String(), edits, nil
}

// requireTargets calls fn for the single string-literal argument of every
// require call.
type requireTargets func(lit *ast.StringLiteral)

func (v requireTargets) Enter(n ast.Node) ast.Visitor {
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

func (v requireTargets) Exit(ast.Node) {}

// lineIndex maps byte offsets to zero-based line and column positions.
type lineIndex []int

func newLineIndex(code string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (li lineIndex) position(offset int) (line, col int) {
	line = sort.Search(len(li), func(i int) bool { return li[i] > offset }) - 1
	return line, offset - li[line]
}

// shiftedCol applies the column shifts from edits on one line to a mapping
// segment column. Columns inside a replaced literal clamp to its start.
func shiftedCol(col int, edits []edit, line int) int {
	shift := 0
	for _, e := range edits {
		if e.line != line {
			continue
		}
		switch {
		case col >= e.col+e.oldLen:
			shift += e.delta
		case col > e.col:
			return e.col + shift
		}
	}
	return col + shift
}
