package client_test

import (
	"testing"

	"github.com/aretw0/caregraph/pkg/client"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertHighlightInvariant(t *testing.T, h client.Highlight) {
	t.Helper()
	active, latest := 0, 0
	for _, n := range h.Nodes {
		if n.Active {
			active++
			assert.Equal(t, h.Current, n.ID)
		}
	}
	for _, e := range h.Edges {
		if e.Latest {
			latest++
			assert.Equal(t, h.Previous, e.Source)
			assert.Equal(t, h.Current, e.Target)
		}
	}
	assert.LessOrEqual(t, active, 1)
	assert.LessOrEqual(t, latest, 1)
}

func TestVisualSync_Initial(t *testing.T) {
	v := client.NewVisualSync(domain.DefaultTopology())
	h := v.Snapshot()

	assert.Equal(t, domain.Triage, h.Current)
	assert.Empty(t, h.Previous)
	_, ok := v.LatestEdge()
	assert.False(t, ok)
	assertHighlightInvariant(t, h)
}

func TestVisualSync_LatestEdgeOnly(t *testing.T) {
	v := client.NewVisualSync(domain.DefaultTopology())

	require.True(t, v.Update(domain.Clinical))
	require.True(t, v.Update(domain.Scheduling))

	h := v.Snapshot()
	assertHighlightInvariant(t, h)
	assert.Equal(t, domain.Clinical, h.Previous)
	assert.Equal(t, domain.Scheduling, h.Current)

	edge, ok := v.LatestEdge()
	require.True(t, ok)
	assert.Equal(t, domain.Clinical, edge.Source)
	assert.Equal(t, domain.Scheduling, edge.Target)

	for _, e := range h.Edges {
		if e.Source == domain.Triage && e.Target == domain.Clinical {
			assert.False(t, e.Latest, "older hops are not highlighted")
		}
	}
}

func TestVisualSync_SameValueIsNoop(t *testing.T) {
	v := client.NewVisualSync(domain.DefaultTopology())
	v.Update(domain.Billing)

	assert.False(t, v.Update(domain.Billing))
	assert.Equal(t, domain.Triage, v.Previous())
	assertHighlightInvariant(t, v.Snapshot())
}

func TestVisualSync_NoEdgeNoHighlight(t *testing.T) {
	topo := domain.DefaultTopology()
	topo.Edges = []domain.Edge{
		{Source: domain.Clinical, Target: domain.Triage},
		{Source: domain.Scheduling, Target: domain.Triage},
		{Source: domain.Billing, Target: domain.Triage},
	}
	v := client.NewVisualSync(topo)
	v.Update(domain.Billing)

	_, ok := v.LatestEdge()
	assert.False(t, ok)
	h := v.Snapshot()
	for _, e := range h.Edges {
		assert.False(t, e.Latest)
	}
	assertHighlightInvariant(t, h)
}
