package client

import (
	"sync"

	"github.com/aretw0/caregraph/pkg/domain"
)

// NodeState is a node with its highlight.
type NodeState struct {
	domain.Node
	Active bool
}

// EdgeState is an edge with its highlight.
type EdgeState struct {
	domain.Edge
	Latest bool
}

// Highlight is what a graph view renders at one instant.
// At most one node is active and at most one edge is latest.
type Highlight struct {
	Current  domain.Responder
	Previous domain.Responder
	Nodes    []NodeState
	Edges    []EdgeState
}

// VisualSync derives the graph highlight from active responder updates.
// Only the most recent hop is highlighted; older hops are forgotten.
type VisualSync struct {
	mu       sync.RWMutex
	topology *domain.Topology
	current  domain.Responder
	previous domain.Responder
}

// NewVisualSync starts with the topology's default responder active.
func NewVisualSync(topology *domain.Topology) *VisualSync {
	return &VisualSync{topology: topology, current: topology.Default}
}

// Update makes r the active responder. Reporting the already active responder
// changes nothing and returns false.
func (v *VisualSync) Update(r domain.Responder) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if r == v.current {
		return false
	}
	v.previous = v.current
	v.current = r
	return true
}

// Current returns the active responder.
func (v *VisualSync) Current() domain.Responder {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Previous returns the responder active before the latest change.
func (v *VisualSync) Previous() domain.Responder {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.previous
}

// LatestEdge returns the edge previous -> current when the graph has one.
func (v *VisualSync) LatestEdge() (domain.Edge, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.previous == "" {
		return domain.Edge{}, false
	}
	return v.topology.Edge(v.previous, v.current)
}

// Snapshot returns the highlight state of every node and edge.
func (v *VisualSync) Snapshot() Highlight {
	v.mu.RLock()
	defer v.mu.RUnlock()

	h := Highlight{
		Current:  v.current,
		Previous: v.previous,
		Nodes:    make([]NodeState, len(v.topology.Nodes)),
		Edges:    make([]EdgeState, len(v.topology.Edges)),
	}
	for i, n := range v.topology.Nodes {
		h.Nodes[i] = NodeState{Node: n, Active: n.ID == v.current}
	}
	for i, e := range v.topology.Edges {
		h.Edges[i] = EdgeState{Edge: e, Latest: v.previous != "" && e.Source == v.previous && e.Target == v.current}
	}
	return h
}
