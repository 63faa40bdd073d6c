package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/sompack/internal/adapters/breaker"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/adapters/fs"
	"go.trai.ch/sompack/internal/adapters/limiter"
	"go.trai.ch/sompack/internal/adapters/logger"
	"go.trai.ch/sompack/internal/adapters/somc"
	"go.trai.ch/sompack/internal/adapters/watcher"
	"go.trai.ch/sompack/internal/app"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/engine/bundler"
	"go.trai.ch/sompack/internal/engine/loader"
	"go.trai.ch/sompack/internal/engine/registry"
	"go.trai.ch/sompack/internal/server"
)

// newTestApp builds a real application over a temp project with one loaded
// two-module chain.
func newTestApp(t *testing.T) *app.App {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		BaseDir:           dir,
		Extensions:        []string{".som"},
		CompiledExtension: ".js",
		CircularPolicy:    domain.PolicyError,
		Parallelism:       4,
		Limits: config.LimitsConfig{
			MaxCachedModules: 128,
			MaxMemoryBytes:   1 << 20,
			MaxOpenHandles:   64,
		},
	}

	log := logger.NewWithWriter(io.Discard, slog.LevelError)
	reg := registry.New()
	lim := limiter.New(cfg.Parallelism, cfg.Limits.MaxMemoryBytes, cfg.Limits.MaxOpenHandles, cfg.Limits.MaxCachedModules)
	brk := breaker.New(breaker.Options{
		FailureThreshold: 3,
		Cooldown:         time.Second,
		HalfOpenProbes:   1,
	}, log)
	resolver := fs.NewResolver(fs.Options{
		BaseDir:           cfg.BaseDir,
		Extensions:        cfg.Extensions,
		CompiledExtension: cfg.CompiledExtension,
	}, fs.NewManifestReader())
	compiler := somc.NewCompiler()

	ld, err := loader.New(loader.Options{
		Policy:           cfg.CircularPolicy,
		MaxCachedModules: cfg.Limits.MaxCachedModules,
	}, resolver, compiler, compiler, reg, lim, brk, log)
	require.NoError(t, err)

	w, err := watcher.New(log)
	require.NoError(t, err)
	application := app.New(cfg, log, resolver, ld, bundler.New(ld, resolver, log, nil), reg, lim, brk, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.som"), []byte("let one = 1\nexport one\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.som"), []byte("use \"./lib\" as lib\nemit lib.one\n"), 0o644))
	_, err = application.LoadModule(context.Background(), "./main", "")
	require.NoError(t, err)
	return application
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, body
}

func TestServer_Health(t *testing.T) {
	ts := httptest.NewServer(server.NewMux(newTestApp(t), logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, body := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = get(t, ts, "/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result domain.ValidationResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.IsValid)
}

func TestServer_MetricsJSON(t *testing.T) {
	ts := httptest.NewServer(server.NewMux(newTestApp(t), logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, body := get(t, ts, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Statistics domain.Statistics     `json:"statistics"`
		Budget     domain.ResourceBudget `json:"budget"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, 2, payload.Statistics.TotalModules)
	assert.Equal(t, 1, payload.Statistics.TotalDependencies)
	assert.Equal(t, 2, payload.Budget.CachedModules)
}

func TestServer_MetricsPrometheus(t *testing.T) {
	ts := httptest.NewServer(server.NewMux(newTestApp(t), logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, body := get(t, ts, "/metrics/prometheus")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sompack_loaded_modules 2")
	assert.Contains(t, string(body), "sompack_cached_modules 2")
	assert.Contains(t, string(body), "sompack_open_circuit_breakers 0")
}

func TestServer_CircuitBreakers(t *testing.T) {
	ts := httptest.NewServer(server.NewMux(newTestApp(t), logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, body := get(t, ts, "/circuit-breakers")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		States map[string]string `json:"states"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "closed", payload.States["filesystem"])
	assert.Equal(t, "closed", payload.States["compiler"])
}

func TestServer_AdminReset(t *testing.T) {
	application := newTestApp(t)
	ts := httptest.NewServer(server.NewMux(application, logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/admin/reset", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, application.Budget().CachedModules)
	assert.Zero(t, application.Statistics().TotalModules)
	assert.Empty(t, application.DependencyGraph())
}

func TestServer_ConfigEndpoint(t *testing.T) {
	application := newTestApp(t)
	ts := httptest.NewServer(server.NewMux(application, logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, body := get(t, ts, "/config")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), application.Config().BaseDir)
}

func TestServer_MethodGating(t *testing.T) {
	ts := httptest.NewServer(server.NewMux(newTestApp(t), logger.NewWithWriter(io.Discard, slog.LevelError)))
	defer ts.Close()

	resp, _ := get(t, ts, "/admin/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
