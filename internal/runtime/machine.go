package runtime

import (
	"fmt"

	"github.com/aretw0/caregraph/pkg/domain"
)

// Hop is one applied edge of the handoff graph.
type Hop struct {
	From  domain.Responder
	To    domain.Responder
	Label string
}

// Decision is the outcome of routing one turn.
type Decision struct {
	Intent domain.Intent
	// Previous is the responder active before the turn.
	Previous domain.Responder
	// Target is the responder selected by the policy.
	Target domain.Responder
	// Next is the responder active after the turn. It differs from Target
	// only when the handoff had to be normalized to the hub.
	Next domain.Responder
	// Hops lists the edges walked, in order. Empty when the responder does not change.
	Hops []Hop
	// Normalized is set when Target could not be reached and the thread stays at the hub.
	Normalized bool
}

// Changed reports whether the turn moved the thread to another responder.
func (d Decision) Changed() bool {
	return d.Next != d.Previous
}

// ViaHub reports whether the handoff fell back through the hub.
func (d Decision) ViaHub() bool {
	return len(d.Hops) > 1 || d.Normalized
}

// Machine enforces the handoff policy on a validated topology.
// It holds no per-thread state and is safe for concurrent use.
type Machine struct {
	topology *domain.Topology
}

// NewMachine validates the topology and returns a Machine bound to it.
func NewMachine(topology *domain.Topology) (*Machine, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	return &Machine{topology: topology}, nil
}

// Initial returns the responder owning new threads.
func (m *Machine) Initial() domain.Responder {
	return m.topology.Hub()
}

// Topology returns the graph the machine enforces.
func (m *Machine) Topology() *domain.Topology {
	return m.topology
}

// Target selects the responder for an intent: the first responder in priority
// order declaring the capability, preferring one already active or directly
// reachable from current. Without any candidate the hub handles the turn.
func (m *Machine) Target(current domain.Responder, intent domain.Intent) domain.Responder {
	var fallback domain.Responder
	for _, r := range domain.Priority {
		if !m.topology.Handles(r, intent) {
			continue
		}
		if r == current || m.topology.HasEdge(current, r) {
			return r
		}
		if fallback == "" {
			fallback = r
		}
	}
	if fallback != "" {
		return fallback
	}
	return m.topology.Hub()
}

// Route classifies nothing: it applies the policy to an already classified intent.
func (m *Machine) Route(current domain.Responder, intent domain.Intent) (Decision, error) {
	if _, ok := m.topology.Node(current); !ok {
		return Decision{}, fmt.Errorf("%w: %q", domain.ErrUnknownResponder, current)
	}
	target := m.Target(current, intent)
	d := m.Handoff(current, target)
	d.Intent = intent
	return d, nil
}

// Handoff computes the hops that move a thread from current to target.
// A target without a direct edge is reached through the hub. When even the
// hub has no edge to it, the handoff is normalized: the thread stops at the hub.
func (m *Machine) Handoff(current, target domain.Responder) Decision {
	d := Decision{Previous: current, Target: target, Next: current}
	if target == current {
		return d
	}

	if e, ok := m.topology.Edge(current, target); ok {
		d.Hops = []Hop{{From: current, To: target, Label: e.Label}}
		d.Next = target
		return d
	}

	hub := m.topology.Hub()
	if current != hub {
		e, _ := m.topology.Edge(current, hub)
		d.Hops = append(d.Hops, Hop{From: current, To: hub, Label: e.Label})
		d.Next = hub
	}
	if target == hub {
		return d
	}
	if e, ok := m.topology.Edge(hub, target); ok {
		d.Hops = append(d.Hops, Hop{From: hub, To: target, Label: e.Label})
		d.Next = target
		return d
	}
	d.Normalized = true
	return d
}

// Check returns ErrIllegalTransition unless from -> to is an edge of the graph.
func (m *Machine) Check(from, to domain.Responder) error {
	if !m.topology.HasEdge(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	return nil
}
