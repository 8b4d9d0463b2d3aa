package caregraph

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the release of the caregraph module.
var Version = strings.TrimSpace(version)
