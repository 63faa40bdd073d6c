package somc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sompack/internal/adapters/somc"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/sourcemap"
)

const sample = `# math helpers
use "./calc" as calc

fn double(n)
  return n * 2
end

let answer = double(calc.base)
emit answer
export double, answer
`

func TestCompile_TranslatesSom(t *testing.T) {
	out := somc.NewCompiler().Compile(context.Background(), "/proj/main.som", sample)

	require.Empty(t, out.Errors)
	require.Empty(t, out.Warnings)
	assert.Equal(t, `// math helpers
const calc = require("./calc");

function double(n) {
  return n * 2;
}

let answer = double(calc.base);
console.log(answer);
exports.double = double; exports.answer = answer;
`, out.Code)
}

func TestCompile_SourceMapPointsAtSourceLines(t *testing.T) {
	out := somc.NewCompiler().Compile(context.Background(), "/proj/main.som", sample)
	require.Empty(t, out.Errors)

	m, err := sourcemap.Parse(out.SourceMap)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/main.som"}, m.Sources)
	require.Len(t, m.SourcesContent, 1)
	require.NotNil(t, m.SourcesContent[0])
	assert.Equal(t, sample, *m.SourcesContent[0])

	lines, err := m.DecodeMappings()
	require.NoError(t, err)

	// The return on source line 5 (0-based 4) keeps its line and its
	// two-space indentation in the output.
	require.Greater(t, len(lines), 4)
	require.Len(t, lines[4], 1)
	assert.Equal(t, 4, lines[4][0].SrcLine)
	assert.Equal(t, 2, lines[4][0].SrcCol)
	assert.Equal(t, 2, lines[4][0].GenCol)
}

func TestCompile_Diagnostics(t *testing.T) {
	source := `wat is this
end
return 1
use "./late" as late
fn broken(
fn open(x)
`
	out := somc.NewCompiler().Compile(context.Background(), "/proj/bad.som", source)

	messages := make([]string, len(out.Errors))
	for i, d := range out.Errors {
		assert.Equal(t, "/proj/bad.som", d.File)
		assert.Equal(t, domain.SeverityError, d.Severity)
		messages[i] = d.Message
	}
	assert.Contains(t, messages, "unrecognized statement")
	assert.Contains(t, messages, "end without matching fn")
	assert.Contains(t, messages, "return outside fn")
	assert.Contains(t, messages, "malformed fn statement")
	assert.Contains(t, messages, "fn is never closed")

	require.NotEmpty(t, out.Warnings)
	assert.Equal(t, "import appears after other statements", out.Warnings[0].Message)
	assert.Equal(t, 4, out.Warnings[0].Line)
}

func TestCompile_ExportBeforeDefinitionIsFine(t *testing.T) {
	source := `export later
let later = 1
export missing
`
	out := somc.NewCompiler().Compile(context.Background(), "/proj/fwd.som", source)

	require.Empty(t, out.Errors)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, `export of undefined name "missing"`, out.Warnings[0].Message)
	assert.Equal(t, 3, out.Warnings[0].Line)
}

func TestCompile_PassThroughKeepsTargetCode(t *testing.T) {
	source := "const x = require(\"./dep\");\nmodule.exports = x;\n"
	out := somc.NewCompiler().Compile(context.Background(), "/proj/lib.js", source)

	require.Empty(t, out.Errors)
	assert.Equal(t, source, out.Code)

	m, err := sourcemap.Parse(out.SourceMap)
	require.NoError(t, err)
	lines, err := m.DecodeMappings()
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Equal(t, 0, lines[0][0].SrcLine)
}

func TestCompile_PassThroughReportsSyntaxErrors(t *testing.T) {
	out := somc.NewCompiler().Compile(context.Background(), "/proj/broken.js", "const = ;")

	require.NotEmpty(t, out.Errors)
	assert.Equal(t, domain.CategorySyntax, out.Errors[0].Category)
	assert.Equal(t, 1, out.Errors[0].Line)
	assert.Equal(t, "const = ;", out.Code)
}

func TestCompile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := somc.NewCompiler().Compile(ctx, "/proj/main.som", sample)

	require.NotEmpty(t, out.Errors)
	assert.Equal(t, domain.SeverityCritical, out.Errors[0].Severity)
	assert.Equal(t, domain.CategorySystem, out.Errors[0].Category)
}

func TestScanImports_Som(t *testing.T) {
	specs := somc.NewCompiler().ScanImports("/proj/main.som", sample)
	assert.Equal(t, []string{"./calc"}, specs)
}

func TestScanImports_TargetCode(t *testing.T) {
	source := `const a = require("./a");
function f() { return require("pkg/sub"); }
const s = "require(\"./not-an-import\")";
`
	specs := somc.NewCompiler().ScanImports("/proj/lib.js", source)
	assert.Equal(t, []string{"./a", "pkg/sub"}, specs)
}

func TestScanImports_UnparsableTargetCode(t *testing.T) {
	assert.Empty(t, somc.NewCompiler().ScanImports("/proj/bad.js", "function {"))
}
