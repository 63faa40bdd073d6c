package bundler_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	gosourcemap "github.com/go-sourcemap/sourcemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"go.trai.ch/sompack/internal/adapters/breaker"
	"go.trai.ch/sompack/internal/adapters/fs"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/adapters/somc"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/engine/bundler"
	"go.trai.ch/sompack/internal/engine/loader"
	"go.trai.ch/sompack/internal/engine/registry"
)

type fixture struct {
	dir     string
	log     *bytes.Buffer
	bundler *bundler.Bundler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf, slog.LevelDebug)
	reg := registry.New()
	lim := limiter.New(4, 1<<20, 64, 128)
	brk := breaker.New(breaker.Options{
		FailureThreshold: 3,
		Cooldown:         time.Second,
		HalfOpenProbes:   1,
	}, log)
	resolver := fs.NewResolver(fs.Options{
		BaseDir:           dir,
		Extensions:        []string{".som"},
		CompiledExtension: ".js",
	}, fs.NewManifestReader())
	compiler := somc.NewCompiler()

	ld, err := loader.New(loader.Options{
		Policy:           domain.PolicyError,
		MaxCachedModules: 128,
	}, resolver, compiler, compiler, reg, lim, brk, log)
	require.NoError(t, err)

	return &fixture{
		dir:     dir,
		log:     buf,
		bundler: bundler.New(ld, resolver, log, nil),
	}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) writeChain(t *testing.T) (pathA, pathB, pathC string) {
	t.Helper()
	pathC = f.write(t, "c.som", "let base = 1\nexport base\n")
	pathB = f.write(t, "b.som", "use \"./c\" as c\nlet two = c.base + 1\nexport two\n")
	pathA = f.write(t, "a.som", "use \"./b\" as b\nemit b.two\n")
	return pathA, pathB, pathC
}

// runBundle executes the artifact in a JavaScript VM with a console shim
// and returns everything logged.
func runBundle(t *testing.T, code string) []any {
	t.Helper()
	var logged []any
	vm := goja.New()
	require.NoError(t, vm.Set("console", map[string]any{
		"log": func(v goja.Value) { logged = append(logged, v.Export()) },
	}))
	_, err := vm.RunString(code)
	require.NoError(t, err)
	return logged
}

func TestBundle_RoundTrip(t *testing.T) {
	f := newFixture(t)
	pathA, pathB, pathC := f.writeChain(t)

	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{Entry: "./a"})
	require.NoError(t, err)

	// Dependencies appear before their dependents in the module map.
	idxA := strings.Index(artifact.Code, strconv.Quote(pathA))
	idxB := strings.Index(artifact.Code, strconv.Quote(pathB))
	idxC := strings.Index(artifact.Code, strconv.Quote(pathC))
	require.GreaterOrEqual(t, idxC, 0)
	assert.Less(t, idxC, idxB)
	assert.Less(t, idxB, idxA)

	// Require targets are canonical ids, not raw specifiers.
	assert.Contains(t, artifact.Code, "require("+strconv.Quote(pathB)+")")
	assert.NotContains(t, artifact.Code, `require("./b")`)

	logged := runBundle(t, artifact.Code)
	require.Len(t, logged, 1)
	assert.Equal(t, int64(2), logged[0])
}

func TestBundle_SourceMapResolvesOriginalPositions(t *testing.T) {
	f := newFixture(t)
	pathA, _, _ := f.writeChain(t)

	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{
		Entry:      "./a",
		SourceMaps: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Map)

	consumer, err := gosourcemap.Parse("bundle.js", []byte(artifact.Map))
	require.NoError(t, err)

	// Find the generated line holding a.som's emit statement and map it
	// back. Consumer lines are 1-based.
	lines := strings.Split(artifact.Code, "\n")
	genLine := -1
	for i, line := range lines {
		if strings.Contains(line, "console.log(b.two)") {
			genLine = i
			break
		}
	}
	require.GreaterOrEqual(t, genLine, 0)

	source, _, origLine, _, ok := consumer.Source(genLine+1, 1)
	require.True(t, ok)
	assert.Equal(t, pathA, source)
	assert.Equal(t, 2, origLine)
}

func TestBundle_MinifyStillRuns(t *testing.T) {
	f := newFixture(t)
	f.writeChain(t)

	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{
		Entry:      "./a",
		Minify:     true,
		SourceMaps: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Map)

	logged := runBundle(t, artifact.Code)
	require.Len(t, logged, 1)
	assert.Equal(t, int64(2), logged[0])
}

func TestBundle_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	f.writeChain(t)

	_, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{
		Entry:  "./a",
		Format: "esm",
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	// Forcing falls back to the module map with a warning.
	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{
		Entry:       "./a",
		Format:      "esm",
		ForceFormat: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.Code)
	assert.Contains(t, f.log.String(), "unsupported bundle format forced")
}

func TestBundle_AggregatesCompileErrors(t *testing.T) {
	f := newFixture(t)
	bad1 := f.write(t, "bad1.som", "wat\n")
	bad2 := f.write(t, "bad2.som", "also wat\n")
	f.write(t, "entry.som", "use \"./bad1\" as one\nuse \"./bad2\" as two\n")

	_, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{Entry: "./entry"})

	require.ErrorIs(t, err, domain.ErrBundle)
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	details, _ := zErr.Metadata()["errors"].(string)
	assert.Contains(t, details, bad1)
	assert.Contains(t, details, bad2)
	assert.Equal(t, 2, zErr.Metadata()["errorCount"])
}

func TestBundle_RequireLikeStringLiteralUntouched(t *testing.T) {
	f := newFixture(t)
	f.write(t, "entry.som", "let s = \"require('./fake')\"\nemit s\n")

	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{Entry: "./entry"})
	require.NoError(t, err)

	assert.Contains(t, artifact.Code, "require('./fake')")

	logged := runBundle(t, artifact.Code)
	require.Len(t, logged, 1)
	assert.Equal(t, "require('./fake')", logged[0])
}

func TestBundle_ExternalsStayUnbundled(t *testing.T) {
	f := newFixture(t)
	f.write(t, "entry.som", "use \"leftpad\" as pad\nemit pad.width\n")

	// Without the allow-list the bare specifier must resolve and cannot.
	_, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{Entry: "./entry"})
	require.ErrorIs(t, err, domain.ErrResolution)

	artifact, err := f.bundler.Bundle(context.Background(), domain.BundleOptions{
		Entry:     "./entry",
		Externals: []string{"leftpad"},
	})
	require.NoError(t, err)
	assert.Contains(t, artifact.Code, `require("leftpad")`)
}
