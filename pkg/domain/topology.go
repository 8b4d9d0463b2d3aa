package domain

import (
	"fmt"
	"slices"
)

// Node describes a responder as it appears on the handoff graph.
type Node struct {
	ID           Responder `json:"id" yaml:"id"`
	Label        string    `json:"label" yaml:"label"`
	Role         string    `json:"role" yaml:"role"`
	Color        string    `json:"color" yaml:"color"`
	Capabilities []Intent  `json:"capabilities,omitempty" yaml:"capabilities"`
}

// Edge is a directed, labelled handoff between two responders.
type Edge struct {
	Source Responder `json:"source" yaml:"source"`
	Target Responder `json:"target" yaml:"target"`
	Label  string    `json:"label,omitempty" yaml:"label"`
}

// Topology is the static handoff graph. It is validated once and never mutated at runtime.
// Default is the initial responder of every thread and acts as the hub.
type Topology struct {
	Nodes   []Node    `json:"nodes" yaml:"nodes"`
	Edges   []Edge    `json:"edges" yaml:"edges"`
	Default Responder `json:"default_agent" yaml:"default_agent"`
}

// DefaultTopology returns the built-in front desk graph.
func DefaultTopology() *Topology {
	return &Topology{
		Default: Triage,
		Nodes: []Node{
			{ID: Triage, Label: "Triage Agent", Role: "Routes patients to specialists", Color: "#3B82F6",
				Capabilities: []Intent{IntentIdentity, IntentOther}},
			{ID: Clinical, Label: "Clinical Agent", Role: "Medical advice & symptoms", Color: "#10B981",
				Capabilities: []Intent{IntentMedical}},
			{ID: Scheduling, Label: "Scheduling Agent", Role: "Scheduling & booking", Color: "#8B5CF6",
				Capabilities: []Intent{IntentScheduling}},
			{ID: Billing, Label: "Billing Agent", Role: "Invoices & insurance", Color: "#F59E0B",
				Capabilities: []Intent{IntentPayment}},
		},
		Edges: []Edge{
			{Source: Triage, Target: Clinical, Label: "Medical symptoms"},
			{Source: Triage, Target: Scheduling, Label: "Booking/scheduling"},
			{Source: Triage, Target: Billing, Label: "Billing questions"},
			{Source: Clinical, Target: Scheduling, Label: "Book appointment"},
			{Source: Clinical, Target: Billing, Label: "Billing inquiry"},
			{Source: Clinical, Target: Triage, Label: "Other needs"},
			{Source: Scheduling, Target: Clinical, Label: "Medical questions"},
			{Source: Scheduling, Target: Billing, Label: "Payment due"},
			{Source: Scheduling, Target: Triage, Label: "Other needs"},
			{Source: Billing, Target: Clinical, Label: "Medical check"},
			{Source: Billing, Target: Scheduling, Label: "Schedule follow-up"},
			{Source: Billing, Target: Triage, Label: "Other needs"},
		},
	}
}

// Hub returns the responder every other responder can fall back to.
func (t *Topology) Hub() Responder {
	return t.Default
}

// Node looks up the node for a responder.
func (t *Topology) Node(id Responder) (Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge from -> to, if the graph declares one.
func (t *Topology) Edge(from, to Responder) (Edge, bool) {
	for _, e := range t.Edges {
		if e.Source == from && e.Target == to {
			return e, true
		}
	}
	return Edge{}, false
}

// HasEdge reports whether a handoff from -> to is legal.
func (t *Topology) HasEdge(from, to Responder) bool {
	_, ok := t.Edge(from, to)
	return ok
}

// Handles reports whether the responder declares the intent as a capability.
func (t *Topology) Handles(id Responder, intent Intent) bool {
	n, ok := t.Node(id)
	return ok && slices.Contains(n.Capabilities, intent)
}

// Validate checks the structural invariants of the graph:
// every responder appears exactly once, edges join known nodes,
// and every non-hub responder has an edge back to the hub.
func (t *Topology) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil topology", ErrInvalidTopology)
	}

	seen := make(map[Responder]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		if !n.ID.Valid() {
			return fmt.Errorf("%w: node %q is not a known responder", ErrInvalidTopology, n.ID)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidTopology, n.ID)
		}
		seen[n.ID] = true
	}
	for _, r := range Priority {
		if !seen[r] {
			return fmt.Errorf("%w: missing node %q", ErrInvalidTopology, r)
		}
	}

	if !seen[t.Default] {
		return fmt.Errorf("%w: default agent %q is not a node", ErrInvalidTopology, t.Default)
	}

	for _, e := range t.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("%w: edge %s->%s references an unknown node", ErrInvalidTopology, e.Source, e.Target)
		}
		if e.Source == e.Target {
			return fmt.Errorf("%w: self edge on %s", ErrInvalidTopology, e.Source)
		}
	}

	hub := t.Hub()
	for _, n := range t.Nodes {
		if n.ID != hub && !t.HasEdge(n.ID, hub) {
			return fmt.Errorf("%w: %s has no edge back to hub %s", ErrInvalidTopology, n.ID, hub)
		}
	}
	return nil
}
