package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/caregraph/pkg/domain"
)

// Overlay contains the live highlight to draw on the graph.
type Overlay struct {
	Current  domain.Responder
	Previous domain.Responder
	Visited  []domain.Responder
}

// GenerateMermaid produces a Mermaid flowchart for the topology.
// The hub is drawn as a circle and specialists as rectangles. Edges back to
// the hub are dotted. With an overlay, the current responder gets the
// "current" class and the edge previous->current is drawn thick.
func GenerateMermaid(topo *domain.Topology, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	hub := topo.Hub()
	for _, node := range topo.Nodes {
		opener, closer := "[", "]"
		if node.ID == hub {
			opener, closer = "((", "))"
		}
		label := escape(node.Label)
		if label == "" {
			label = node.ID.String()
		}
		if node.Role != "" {
			label += "<br/><small>" + escape(node.Role) + "</small>"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", node.ID, opener, label, closer)
	}

	latest := -1
	for i, e := range topo.Edges {
		arrow := "-->"
		if e.Target == hub {
			arrow = "-.->"
		}
		if e.Label != "" {
			if e.Target == hub {
				arrow = fmt.Sprintf("-. \"%s\" .->", escape(e.Label))
			} else {
				arrow = fmt.Sprintf("-- \"%s\" -->", escape(e.Label))
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", e.Source, arrow, e.Target)

		if overlay != nil && e.Source == overlay.Previous && e.Target == overlay.Current {
			latest = i
		}
	}

	for _, node := range topo.Nodes {
		if node.Color != "" {
			fmt.Fprintf(&sb, "    style %s stroke:%s,stroke-width:2px\n", node.ID, node.Color)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Responder]bool)
		for _, id := range overlay.Visited {
			if _, ok := topo.Node(id); !ok || seen[id] || id == overlay.Current {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if _, ok := topo.Node(overlay.Current); ok {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
		if latest >= 0 {
			fmt.Fprintf(&sb, "    linkStyle %d stroke:#fbc02d,stroke-width:4px;\n", latest)
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
