package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/pkg/adapters/rules"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reasoner ports.ReasoningEngine) *Server {
	t.Helper()
	eng, err := caregraph.New(reasoner)
	require.NoError(t, err)
	return NewServer(eng)
}

func TestSendMessage_ContinuesThread(t *testing.T) {
	s := newTestServer(t, rules.New(0))
	ctx := context.Background()

	first, err := s.handleSendMessage(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"message": "I have a fever and a cough",
	})
	require.NoError(t, err)
	assert.True(t, first.NewThread)
	assert.NotEmpty(t, first.ThreadID)
	assert.Equal(t, domain.Clinical, first.Responder)
	assert.Equal(t, []domain.Responder{domain.Clinical}, first.Handoffs)
	assert.NotEmpty(t, first.Reply)
	assert.Empty(t, first.Error)

	second, err := s.handleSendMessage(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"message":   "thanks, that helps",
		"thread_id": first.ThreadID,
	})
	require.NoError(t, err)
	assert.False(t, second.NewThread)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, domain.Clinical, second.Responder, "follow-ups stay with the specialist")
	assert.Empty(t, second.Handoffs)
}

type brokenClassifier struct{ rules.Generator }

func (brokenClassifier) Classify(context.Context, ports.ClassifyRequest) (domain.Intent, error) {
	return "", errors.New("model offline")
}

func TestSendMessage_ReportsTurnError(t *testing.T) {
	s := newTestServer(t, brokenClassifier{})

	resp, err := s.handleSendMessage(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"message": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, caregraph.MsgUnavailable, resp.Error)
	assert.Equal(t, domain.Triage, resp.Responder)
	assert.Empty(t, resp.Reply)
}

func TestSendMessage_RejectsInput(t *testing.T) {
	eng, err := caregraph.New(rules.New(0))
	require.NoError(t, err)
	s := NewServer(eng, WithMaxInputSize(8))

	_, err = s.handleSendMessage(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"message": strings.Repeat("a", 9),
	})
	assert.Error(t, err)

	_, err = s.handleSendMessage(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{})
	assert.Error(t, err)
}

func TestGraphJSON(t *testing.T) {
	s := newTestServer(t, rules.New(0))

	data, err := s.graphJSON()
	require.NoError(t, err)

	var topo domain.Topology
	require.NoError(t, json.Unmarshal(data, &topo))
	assert.Equal(t, domain.Triage, topo.Default)
	assert.Len(t, topo.Edges, len(domain.DefaultTopology().Edges))
	assert.NotNil(t, s.MCPServer())
}
