// Package store holds the process-lifetime registries for graphs and runs.
// Both are mutex-guarded maps: callers may be concurrent, records are kept
// until the process exits, and nothing here implements business logic.
// Eviction is deliberately absent; durability, if ever needed, belongs in a
// different implementation behind the same lookup methods.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/nvoss/stepflow/internal/engine"
	"github.com/nvoss/stepflow/internal/workflow"
)

// GraphNotFoundError reports a lookup of an unregistered graph ID.
type GraphNotFoundError struct {
	ID string
}

func (e *GraphNotFoundError) Error() string {
	return fmt.Sprintf("graph %q not found", e.ID)
}

// RunNotFoundError reports a lookup of an unknown run ID.
type RunNotFoundError struct {
	ID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.ID)
}

// GraphInfo is a listing row for a stored graph.
type GraphInfo struct {
	ID          string `json:"graph_id"`
	Name        string `json:"name,omitempty"`
	Fingerprint string `json:"fingerprint"`
	NodeCount   int    `json:"node_count"`
}

// GraphStore registers compiled graphs under generated ULIDs. Graphs are
// immutable, so lookups return the stored value directly.
type GraphStore struct {
	mu     sync.RWMutex
	graphs map[string]*workflow.Graph
}

func NewGraphStore() *GraphStore {
	return &GraphStore{graphs: map[string]*workflow.Graph{}}
}

// Put stores a compiled graph and returns its new ID.
func (s *GraphStore) Put(g *workflow.Graph) string {
	id := ulid.Make().String()
	s.mu.Lock()
	s.graphs[id] = g
	s.mu.Unlock()
	return id
}

func (s *GraphStore) Get(id string) (*workflow.Graph, error) {
	s.mu.RLock()
	g, ok := s.graphs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &GraphNotFoundError{ID: id}
	}
	return g, nil
}

// List returns info rows sorted by ID. ULIDs sort by creation time.
func (s *GraphStore) List() []GraphInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GraphInfo, 0, len(s.graphs))
	for id, g := range s.graphs {
		out = append(out, GraphInfo{
			ID:          id,
			Name:        g.Name,
			Fingerprint: g.Fingerprint,
			NodeCount:   len(g.Nodes),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunRegistry stores run records. Save clones the record and Get clones it
// back out, so the engine's live record is never shared with readers.
// RunRegistry implements engine.RunSaver.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*engine.Run
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: map[string]*engine.Run{}}
}

func (r *RunRegistry) Save(run *engine.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run record missing id")
	}
	clone := run.Clone()
	r.mu.Lock()
	r.runs[run.ID] = clone
	r.mu.Unlock()
	return nil
}

func (r *RunRegistry) Get(id string) (*engine.Run, error) {
	r.mu.RLock()
	run, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &RunNotFoundError{ID: id}
	}
	return run.Clone(), nil
}

// List returns all run IDs in sorted order.
func (r *RunRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
