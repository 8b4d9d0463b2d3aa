package file_test

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopology_RoundTripDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, file.SaveTopology(path, domain.DefaultTopology()))

	topo, err := file.LoadTopology(path)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTopology(), topo)
}

func TestParseTopology_Invalid(t *testing.T) {
	t.Run("Unknown Field", func(t *testing.T) {
		_, err := file.ParseTopology([]byte("nodes: []\nfoo: bar\n"))
		assert.ErrorIs(t, err, domain.ErrInvalidTopology)
	})

	t.Run("Missing Responders", func(t *testing.T) {
		doc := `
nodes:
  - id: Triage
    label: Triage Agent
default_agent: Triage
`
		_, err := file.ParseTopology([]byte(doc))
		assert.ErrorIs(t, err, domain.ErrInvalidTopology)
	})
}
