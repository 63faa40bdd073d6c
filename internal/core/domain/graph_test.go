package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sompack/internal/core/domain"
)

func TestGraph_Add_Duplicate(t *testing.T) {
	g := domain.NewGraph()

	require.NoError(t, g.Add("/a.som", nil))
	err := g.Add("/a.som", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateModule)
}

func TestGraph_Levels(t *testing.T) {
	g := domain.NewGraph()
	// a -> b -> c, a -> c
	require.NoError(t, g.Add("/c.som", nil))
	require.NoError(t, g.Add("/b.som", []string{"/c.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som", "/c.som"}))

	assert.Equal(t, 0, g.Level("/c.som"))
	assert.Equal(t, 1, g.Level("/b.som"))
	assert.Equal(t, 2, g.Level("/a.som"))
	assert.Equal(t, 2, g.MaxDepth())
}

func TestGraph_Levels_IncrementalOnRegister(t *testing.T) {
	g := domain.NewGraph()
	// b is registered before its dependency d exists; d arrives later with
	// its own depth and b's level must follow.
	require.NoError(t, g.Add("/b.som", []string{"/d.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))
	assert.Equal(t, 1, g.Level("/b.som"))
	assert.Equal(t, 2, g.Level("/a.som"))

	require.NoError(t, g.Add("/e.som", nil))
	// d existed only as b's dependency target; registering it now with its
	// own dependency deepens everything above it.
	require.NoError(t, g.Add("/d.som", []string{"/e.som"}))

	assert.Equal(t, 1, g.Level("/d.som"))
	assert.Equal(t, 2, g.Level("/b.som"))
	assert.Equal(t, 3, g.Level("/a.som"))
}

func TestGraph_DetectCycles(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))
	require.NoError(t, g.Add("/b.som", []string{"/a.som"}))

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"/a.som", "/b.som"}, cycles[0])
}

func TestGraph_DetectCycles_Acyclic(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/c.som", nil))
	require.NoError(t, g.Add("/b.som", []string{"/c.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))

	assert.Empty(t, g.DetectCycles())
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/c.som", nil))
	require.NoError(t, g.Add("/b.som", []string{"/c.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som", "/c.som"}))

	order := g.TopologicalOrder()
	require.Len(t, order, 3)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range g.Nodes() {
		for _, dep := range g.Dependencies(id) {
			assert.Less(t, pos[dep], pos[id], "%s must come after %s", id, dep)
		}
	}
}

func TestGraph_TransitiveDependents(t *testing.T) {
	g := domain.NewGraph()
	// a -> b -> c, d -> c
	require.NoError(t, g.Add("/c.som", nil))
	require.NoError(t, g.Add("/b.som", []string{"/c.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))
	require.NoError(t, g.Add("/d.som", []string{"/c.som"}))

	assert.Equal(t, []string{"/a.som", "/b.som", "/d.som"}, g.TransitiveDependents("/c.som"))
	assert.Equal(t, []string{"/a.som"}, g.TransitiveDependents("/b.som"))
	assert.Empty(t, g.TransitiveDependents("/a.som"))
}

func TestGraph_Remove(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/b.som", nil))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))

	g.Remove("/b.som")
	assert.False(t, g.Has("/b.som"))
	assert.Empty(t, g.Dependencies("/a.som"))
	assert.Empty(t, g.TransitiveDependents("/b.som"))
}

func TestGraph_Levels_CycleStaysConsistent(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/b.som", []string{"/a.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))

	// Levels inside a cycle are a convention, but they must agree with each
	// other: the closing edge is the back-edge, and the node carrying it
	// sits exactly one above its dependency.
	assert.Equal(t, 0, g.Level("/b.som"))
	assert.Equal(t, 1, g.Level("/a.som"))
	assert.Equal(t, 1, g.MaxDepth())
}

func TestGraph_Reachable(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.Add("/c.som", nil))
	require.NoError(t, g.Add("/b.som", []string{"/c.som"}))
	require.NoError(t, g.Add("/a.som", []string{"/b.som"}))
	require.NoError(t, g.Add("/lone.som", nil))

	closure := g.Reachable("/a.som")
	assert.Len(t, closure, 3)
	assert.NotContains(t, closure, "/lone.som")
}

func TestCyclePath(t *testing.T) {
	assert.Equal(t, "/a -> /b -> /a", domain.CyclePath([]string{"/a", "/b"}))
	assert.Equal(t, "", domain.CyclePath(nil))
}
