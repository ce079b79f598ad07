package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kode4food/relay/pkg/api"
)

type (
	// MemoryStore keeps pipeline graphs in process memory. It follows the
	// FalkorStore semantics, including per-graph sequential step ids that
	// are preserved by Copy
	MemoryStore struct {
		graphs map[string]*memoryGraph
		mu     sync.Mutex
	}

	memoryGraph struct {
		steps  map[api.StepID]*api.Step
		edges  map[api.StepID][]api.StepID
		name   string
		nextID api.StepID
		mu     sync.RWMutex
	}
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Graph = (*memoryGraph)(nil)
)

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: map[string]*memoryGraph{},
	}
}

// Open returns the named graph, creating it when absent
func (s *MemoryStore) Open(_ context.Context, name string) (Graph, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.graphs[name]; ok {
		return g, nil
	}
	g := newMemoryGraph(name)
	s.graphs[name] = g
	return g, nil
}

// Copy deep-copies src under dst
func (s *MemoryStore) Copy(_ context.Context, src, dst string) (Graph, error) {
	if src == "" || dst == "" {
		return nil, ErrNameEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[dst]; ok {
		return nil, fmt.Errorf("%w: %s", ErrNameCollision, dst)
	}

	res := newMemoryGraph(dst)
	if g, ok := s.graphs[src]; ok {
		g.copyInto(res)
	}
	s.graphs[dst] = res
	return res, nil
}

// Delete removes the named graph
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	delete(s.graphs, name)
	return nil
}

// List returns the graph names in sorted order
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.graphs)), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func newMemoryGraph(name string) *memoryGraph {
	return &memoryGraph{
		name:  name,
		steps: map[api.StepID]*api.Step{},
		edges: map[api.StepID][]api.StepID{},
	}
}

func (g *memoryGraph) Name() string {
	return g.name
}

func (g *memoryGraph) CreateStep(
	_ context.Context, cmd, desc string,
) (*api.Step, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := &api.Step{
		ID:          g.nextID,
		Command:     cmd,
		Description: desc,
	}
	g.nextID++
	g.steps[st.ID] = st
	return copyStep(st), nil
}

func (g *memoryGraph) Connect(
	_ context.Context, src, dest api.StepID,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, srcOK := g.steps[src]
	_, destOK := g.steps[dest]
	if !srcOK || !destOK {
		return fmt.Errorf("%w: %d -> %d", ErrStepNotFound, src, dest)
	}
	g.edges[src] = append(g.edges[src], dest)
	return nil
}

func (g *memoryGraph) Steps(context.Context) ([]*api.Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(g.steps))
	return g.collect(ids), nil
}

func (g *memoryGraph) Step(
	_ context.Context, id api.StepID,
) (*api.Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.steps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStepNotFound, id)
	}
	return copyStep(st), nil
}

func (g *memoryGraph) Roots(context.Context) ([]*api.Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	targets := map[api.StepID]bool{}
	for _, dests := range g.edges {
		for _, d := range dests {
			targets[d] = true
		}
	}
	var ids []api.StepID
	for id := range g.steps {
		if !targets[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return g.collect(ids), nil
}

func (g *memoryGraph) Successors(
	_ context.Context, id api.StepID,
) ([]*api.Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := slices.Clone(g.edges[id])
	slices.Sort(ids)
	return g.collect(ids), nil
}

func (g *memoryGraph) SetResult(
	_ context.Context, id api.StepID, res api.Result,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.steps[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrStepNotFound, id)
	}
	g.steps[id] = st.WithResult(res)
	return nil
}

func (g *memoryGraph) collect(ids []api.StepID) []*api.Step {
	res := make([]*api.Step, 0, len(ids))
	for _, id := range ids {
		res = append(res, copyStep(g.steps[id]))
	}
	return res
}

func (g *memoryGraph) copyInto(dst *memoryGraph) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	dst.nextID = g.nextID
	for id, st := range g.steps {
		dst.steps[id] = copyStep(st)
	}
	for id, dests := range g.edges {
		dst.edges[id] = slices.Clone(dests)
	}
}

func copyStep(st *api.Step) *api.Step {
	res := *st
	if st.Output != nil {
		out := *st.Output
		res.Output = &out
	}
	if st.ExitCode != nil {
		code := *st.ExitCode
		res.ExitCode = &code
	}
	return &res
}
