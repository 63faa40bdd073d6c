package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/engine/registry"
)

func record(id string, deps ...string) *domain.ModuleRecord {
	return &domain.ModuleRecord{ID: id, Dependencies: deps}
}

func TestRegister_FillsLevel(t *testing.T) {
	r := registry.New()

	require.NoError(t, r.Register(record("/p/leaf.som")))
	require.NoError(t, r.Register(record("/p/mid.som", "/p/leaf.som")))
	require.NoError(t, r.Register(record("/p/top.som", "/p/mid.som")))

	top, ok := r.Record("/p/top.som")
	require.True(t, ok)
	assert.Equal(t, 2, top.Level)
	assert.Equal(t, map[string]int{
		"/p/leaf.som": 0,
		"/p/mid.som":  1,
		"/p/top.som":  2,
	}, r.Levels())
}

func TestRegister_DuplicateFails(t *testing.T) {
	r := registry.New()

	require.NoError(t, r.Register(record("/p/a.som")))
	err := r.Register(record("/p/a.som"))
	assert.ErrorIs(t, err, domain.ErrDuplicateModule)
}

func TestInvalidate_ClearsTransitiveDependents(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/leaf.som")))
	require.NoError(t, r.Register(record("/p/mid.som", "/p/leaf.som")))
	require.NoError(t, r.Register(record("/p/top.som", "/p/mid.som")))
	require.NoError(t, r.Register(record("/p/other.som")))

	cleared := r.Invalidate("/p/leaf.som")

	assert.Equal(t, []string{"/p/leaf.som", "/p/mid.som", "/p/top.som"}, cleared)
	assert.False(t, r.Has("/p/mid.som"))
	assert.True(t, r.Has("/p/other.som"))

	// The whole chain can now be re-registered.
	require.NoError(t, r.Register(record("/p/leaf.som")))
	require.NoError(t, r.Register(record("/p/mid.som", "/p/leaf.som")))
}

func TestInvalidate_UnknownIdIsNoop(t *testing.T) {
	r := registry.New()
	assert.Nil(t, r.Invalidate("/p/ghost.som"))
}

func TestClear_LeavesEmptyRegistry(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/b.som")))
	require.NoError(t, r.Register(record("/p/a.som", "/p/b.som", "/p/implicit.som")))

	r.Clear()

	assert.Equal(t, 0, r.Statistics().TotalModules)
	assert.Empty(t, r.Adjacency())
	assert.False(t, r.Has("/p/a.som"))
	assert.False(t, r.Has("/p/b.som"))

	// Cleared ids register again without duplicate errors.
	require.NoError(t, r.Register(record("/p/a.som")))
}

func TestValidate_ReportsUnloadedDependencies(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/a.som", "/p/missing.som")))

	result := r.Validate()

	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "/p/missing.som")
	assert.Contains(t, result.Errors[0], "/p/a.som")
}

func TestValidate_CleanGraph(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/b.som")))
	require.NoError(t, r.Register(record("/p/a.som", "/p/b.som")))

	result := r.Validate()
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestStatistics(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/c.som")))
	require.NoError(t, r.Register(record("/p/b.som", "/p/c.som")))
	require.NoError(t, r.Register(record("/p/a.som", "/p/b.som", "/p/c.som")))

	stats := r.Statistics()

	assert.Equal(t, 3, stats.TotalModules)
	assert.Equal(t, 3, stats.TotalDependencies)
	assert.InDelta(t, 1.0, stats.AverageDependencies, 0.0001)
	assert.Equal(t, 2, stats.MaxDependencyDepth)
	assert.Equal(t, 0, stats.CircularDependencies)
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(record("/p/c.som")))
	require.NoError(t, r.Register(record("/p/b.som", "/p/c.som")))
	require.NoError(t, r.Register(record("/p/a.som", "/p/b.som")))

	order := r.TopologicalOrder()
	assert.Equal(t, []string{"/p/c.som", "/p/b.som", "/p/a.som"}, order)
}
