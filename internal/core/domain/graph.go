package domain

import (
	"slices"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// Graph is a directed dependency graph keyed by canonical module ids.
// It maintains forward adjacency (id -> dependency ids), reverse adjacency
// (id -> dependent ids) and per-node levels. Not safe for concurrent use;
// the Registry serializes access.
type Graph struct {
	forward    map[string][]string
	reverse    map[string]map[string]struct{}
	levels     map[string]int
	registered map[string]struct{}
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		forward:    make(map[string][]string),
		reverse:    make(map[string]map[string]struct{}),
		levels:     make(map[string]int),
		registered: make(map[string]struct{}),
	}
}

// Add inserts a node with its ordered dependency ids. Dependency targets
// that are not yet present are created as implicit leaf nodes so levels stay
// computable while a closure is still being discovered; a later Add for such
// a target upgrades it in place. Adding an id twice returns
// ErrDuplicateModule.
func (g *Graph) Add(id string, deps []string) error {
	if _, exists := g.registered[id]; exists {
		return zerr.With(ErrDuplicateModule, "module", id)
	}

	g.registered[id] = struct{}{}
	g.forward[id] = slices.Clone(deps)
	for _, dep := range deps {
		g.ensureNode(dep)
		g.reverse[dep][id] = struct{}{}
	}
	g.ensureNode(id)
	g.recomputeLevels(id)
	return nil
}

// Remove deletes a node and all its edges from both adjacency maps.
// Dependents lose their forward edge to the removed node; they are expected
// to be invalidated and re-registered by the caller.
func (g *Graph) Remove(id string) {
	for _, dep := range g.forward[id] {
		delete(g.reverse[dep], id)
	}
	dependents := g.reverse[id]
	delete(g.reverse, id)
	delete(g.forward, id)
	delete(g.levels, id)
	delete(g.registered, id)

	for dep := range dependents {
		g.forward[dep] = slices.DeleteFunc(g.forward[dep], func(s string) bool { return s == id })
		g.recomputeLevels(dep)
	}
}

// Has reports whether the graph contains the given id, including implicit
// nodes created as edge targets.
func (g *Graph) Has(id string) bool {
	_, ok := g.forward[id]
	return ok
}

// Registered reports whether the id was explicitly added with its edges,
// as opposed to existing only as another node's dependency target.
func (g *Graph) Registered(id string) bool {
	_, ok := g.registered[id]
	return ok
}

// Dependencies returns the ordered dependency ids of a node.
func (g *Graph) Dependencies(id string) []string {
	return slices.Clone(g.forward[id])
}

// Dependents returns the ids that directly depend on the given node, sorted.
func (g *Graph) Dependents(id string) []string {
	deps := make([]string, 0, len(g.reverse[id]))
	for d := range g.reverse[id] {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Nodes returns all node ids in sorted order.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.forward))
	for id := range g.forward {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.forward)
}

// Level returns the dependency level of a node: 0 for leaves,
// 1 + max(level of dependencies) otherwise.
func (g *Graph) Level(id string) int {
	return g.levels[id]
}

// Levels returns a copy of the level map.
func (g *Graph) Levels() map[string]int {
	out := make(map[string]int, len(g.levels))
	for id, lvl := range g.levels {
		out[id] = lvl
	}
	return out
}

func (g *Graph) ensureNode(id string) {
	if _, ok := g.forward[id]; !ok {
		g.forward[id] = nil
	}
	if _, ok := g.reverse[id]; !ok {
		g.reverse[id] = make(map[string]struct{})
	}
	if _, ok := g.levels[id]; !ok {
		g.levels[id] = 0
	}
}

// recomputeLevels updates the level of id from its dependencies and
// propagates through reverse edges, touching only nodes whose level
// actually changes. Propagation into a node already on the visiting path
// is deferred to a follow-up pass instead of dropped, so members of a
// cycle settle at most one above their non-back-edge dependencies rather
// than keeping a stale level. Acyclic graphs finish in the first pass.
func (g *Graph) recomputeLevels(id string) {
	pending := map[string]struct{}{id: {}}
	for pass := 0; len(pending) > 0 && pass <= len(g.forward); pass++ {
		deferred := make(map[string]struct{})
		for node := range pending {
			g.recomputeFrom(node, map[string]struct{}{}, deferred)
		}
		pending = deferred
	}
}

func (g *Graph) recomputeFrom(id string, visiting, deferred map[string]struct{}) {
	if _, on := visiting[id]; on {
		deferred[id] = struct{}{}
		return
	}
	visiting[id] = struct{}{}
	defer delete(visiting, id)

	level := 0
	for _, dep := range g.forward[id] {
		if _, on := visiting[dep]; on {
			// Back-edge of a cycle; it does not contribute to depth.
			continue
		}
		if l := g.levels[dep] + 1; l > level {
			level = l
		}
	}
	if g.levels[id] == level {
		// Dependents derive their level from ours; unchanged means the
		// propagation front stops here.
		return
	}
	g.levels[id] = level
	for dependent := range g.reverse[id] {
		g.recomputeFrom(dependent, visiting, deferred)
	}
}

// DetectCycles runs a depth-first traversal with an on-stack set and
// returns every distinct cycle as its full ordered path. A back-edge to a
// stack member is a cycle; traversal is deterministic over sorted ids.
func (g *Graph) DetectCycles() [][]string {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.forward))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		stack = append(stack, id)

		for _, dep := range g.forward[id] {
			switch state[dep] {
			case onStack:
				start := slices.Index(stack, dep)
				cycle := slices.Clone(stack[start:])
				cycles = append(cycles, cycle)
			case unvisited:
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range g.Nodes() {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// TopologicalOrder returns every node strictly after all its dependencies,
// computed as a deterministic depth-first postorder over sorted ids.
// Cycle back-edges are skipped, so the result is well defined even while a
// warn-policy cycle is present in the graph.
func (g *Graph) TopologicalOrder() []string {
	order := make([]string, 0, len(g.forward))
	onStack := make(map[string]bool, len(g.forward))
	done := make(map[string]bool, len(g.forward))

	var visit func(id string)
	visit = func(id string) {
		onStack[id] = true
		for _, dep := range g.forward[id] {
			if done[dep] || onStack[dep] {
				continue
			}
			visit(dep)
		}
		onStack[id] = false
		done[id] = true
		order = append(order, id)
	}

	for _, id := range g.Nodes() {
		if !done[id] {
			visit(id)
		}
	}
	return order
}

// TransitiveDependents returns every node reachable from id via reverse
// edges, excluding id itself, in sorted order.
func (g *Graph) TransitiveDependents(id string) []string {
	seen := map[string]struct{}{id: {}}
	var out []string
	var walk func(string)
	walk = func(cur string) {
		for dep := range g.reverse[cur] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
			walk(dep)
		}
	}
	walk(id)
	sort.Strings(out)
	return out
}

// Reachable returns the dependency closure of entry (entry included) as a set.
func (g *Graph) Reachable(entry string) map[string]struct{} {
	closure := make(map[string]struct{})
	var walk func(string)
	walk = func(cur string) {
		if _, ok := closure[cur]; ok {
			return
		}
		closure[cur] = struct{}{}
		for _, dep := range g.forward[cur] {
			walk(dep)
		}
	}
	walk(entry)
	return closure
}

// MaxDepth returns the highest level present in the graph.
func (g *Graph) MaxDepth() int {
	depth := 0
	for _, lvl := range g.levels {
		if lvl > depth {
			depth = lvl
		}
	}
	return depth
}

// EdgeCount returns the total number of forward edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.forward {
		n += len(deps)
	}
	return n
}

// CyclePath renders a cycle as "a -> b -> a" for error messages and logs.
func CyclePath(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	var b strings.Builder
	for _, id := range cycle {
		b.WriteString(id)
		b.WriteString(" -> ")
	}
	b.WriteString(cycle[0])
	return b.String()
}
