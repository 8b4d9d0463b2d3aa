package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the caregraph banner to w.
func PrintBanner(w io.Writer, profile termenv.Profile) {
	lines := []struct {
		text, color string
	}{
		{"                                               _     ", "#3B82F6"},
		{"   ___ __ _ _ __ ___  __ _ _ __ __ _ _ __ | |__  ", "#10B981"},
		{"  / __/ _` | '__/ _ \\/ _` | '__/ _` | '_ \\| '_ \\ ", "#8B5CF6"},
		{" | (_| (_| | | |  __/ (_| | | | (_| | |_) | | | |", "#F59E0B"},
		{"  \\___\\__,_|_|  \\___|\\__, |_|  \\__,_| .__/|_| |_|", "#EF4444"},
		{"                     |___/          |_|          ", "#EC4899"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, profile.String(l.text).Foreground(profile.Color(l.color)))
	}
	fmt.Fprintln(w)
}
