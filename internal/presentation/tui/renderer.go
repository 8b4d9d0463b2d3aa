package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/caregraph/pkg/client"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown using glamour.
// When glamour cannot be initialized the text is returned unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// Printer writes chat transcript entries to a terminal.
type Printer struct {
	out      io.Writer
	topology *domain.Topology
	profile  termenv.Profile
	render   func(string) (string, error)
}

// NewPrinter returns a Printer. With rich=false entries are written as plain
// text with no colors or markdown rendering.
func NewPrinter(out io.Writer, topology *domain.Topology, rich bool) *Printer {
	p := &Printer{out: out, topology: topology, profile: termenv.Ascii}
	if rich {
		p.profile = termenv.ColorProfile()
		p.render = NewRenderer()
	}
	return p
}

// Profile returns the color profile used by the printer.
func (p *Printer) Profile() termenv.Profile {
	return p.profile
}

// Badge renders a responder name in its graph color.
func (p *Printer) Badge(r domain.Responder) string {
	label := r.String()
	color := ""
	if node, ok := p.topology.Node(r); ok {
		label = node.Label
		color = node.Color
	}
	s := p.profile.String(" " + label + " ").Bold()
	if color != "" {
		s = s.Background(p.profile.Color(color)).Foreground(p.profile.Color("#000000"))
	}
	return s.String()
}

// Handoff announces that another responder took the thread.
func (p *Printer) Handoff(from, to domain.Responder) {
	arrow := p.profile.String(" -> ").Faint()
	fmt.Fprintf(p.out, "%s%s%s\n", p.Badge(from), arrow, p.Badge(to))
}

// Entry writes one responder entry.
func (p *Printer) Entry(e client.Entry) {
	if e.Role == domain.RoleUser {
		return
	}

	content := e.Content
	if e.Failed {
		fmt.Fprintf(p.out, "%s %s\n", p.Badge(e.Responder), p.profile.String(content).Foreground(p.profile.Color("#EF4444")))
		return
	}
	if p.render != nil {
		if rendered, err := p.render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Fprintf(p.out, "%s\n%s\n", p.Badge(e.Responder), content)
}
