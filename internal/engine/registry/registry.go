// Package registry owns the dependency graph and the module record store.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/zerr"
)

// Registry serializes all graph and record mutations behind one mutex:
// single writer per id, readers see a consistent pairing of graph and
// records at all times.
type Registry struct {
	mu      sync.RWMutex
	graph   *domain.Graph
	records map[string]*domain.ModuleRecord
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		graph:   domain.NewGraph(),
		records: make(map[string]*domain.ModuleRecord),
	}
}

// Register adds a loaded module. The record's Level is filled in from the
// graph. Registering an id twice fails with ErrDuplicateModule; callers
// must Invalidate first to replace a module.
func (r *Registry) Register(rec *domain.ModuleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.graph.Add(rec.ID, rec.Dependencies); err != nil {
		return zerr.With(err, "module", rec.ID)
	}
	rec.Level = r.graph.Level(rec.ID)
	r.records[rec.ID] = rec
	return nil
}

// Remove deletes a module and its edges. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.Remove(id)
	delete(r.records, id)
}

// Clear drops every record and every graph node, implicit ones included,
// leaving the registry as freshly constructed.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph = domain.NewGraph()
	r.records = make(map[string]*domain.ModuleRecord)
}

// Record returns the stored record for a canonical id.
func (r *Registry) Record(id string) (*domain.ModuleRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Has reports whether the id carries a registered record.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Levels returns the current level of every node.
func (r *Registry) Levels() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Levels()
}

// Dependencies returns the ordered direct dependencies of a module.
func (r *Registry) Dependencies(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Dependencies(id)
}

// Dependents returns the direct dependents of a module, sorted.
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Dependents(id)
}

// DetectCycles returns every distinct cycle as its full ordered path.
func (r *Registry) DetectCycles() [][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.DetectCycles()
}

// TopologicalOrder returns every node strictly after its dependencies.
func (r *Registry) TopologicalOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.TopologicalOrder()
}

// Reachable returns the dependency closure of entry, entry included.
func (r *Registry) Reachable(entry string) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Reachable(entry)
}

// Adjacency returns a copy of the forward adjacency for every node.
func (r *Registry) Adjacency() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adj := make(map[string][]string, r.graph.Len())
	for _, id := range r.graph.Nodes() {
		adj[id] = r.graph.Dependencies(id)
	}
	return adj
}

// Invalidate removes id and every transitive dependent so they reload from
// scratch. It returns the cleared ids, id first, dependents sorted after it.
func (r *Registry) Invalidate(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.graph.Has(id) {
		return nil
	}
	dependents := r.graph.TransitiveDependents(id)

	cleared := make([]string, 0, len(dependents)+1)
	cleared = append(cleared, id)
	cleared = append(cleared, dependents...)
	for _, target := range cleared {
		r.graph.Remove(target)
		delete(r.records, target)
	}
	return cleared
}

// Validate checks graph and record store consistency: every edge target
// must be a registered module with a record, and stored levels must match
// the graph.
func (r *Registry) Validate() domain.ValidationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []string
	for _, id := range r.graph.Nodes() {
		if !r.graph.Registered(id) {
			for _, dependent := range r.graph.Dependents(id) {
				errs = append(errs, fmt.Sprintf("module %s depends on unloaded module %s", dependent, id))
			}
			continue
		}
		rec, ok := r.records[id]
		if !ok {
			errs = append(errs, fmt.Sprintf("module %s is in the graph but has no record", id))
			continue
		}
		if rec.Level != r.graph.Level(id) {
			errs = append(errs, fmt.Sprintf("module %s has stale level %d, graph says %d", id, rec.Level, r.graph.Level(id)))
		}
	}
	sort.Strings(errs)
	return domain.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// Statistics summarizes the graph for operators.
func (r *Registry) Statistics() domain.Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.graph.Len()
	edges := r.graph.EdgeCount()
	avg := 0.0
	if total > 0 {
		avg = float64(edges) / float64(total)
	}
	return domain.Statistics{
		TotalModules:         total,
		TotalDependencies:    edges,
		AverageDependencies:  avg,
		MaxDependencyDepth:   r.graph.MaxDepth(),
		CircularDependencies: len(r.graph.DetectCycles()),
	}
}
