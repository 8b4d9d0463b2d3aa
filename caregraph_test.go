package caregraph_test

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/pkg/adapters/rules"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the events of one turn.
type recorder struct {
	events []domain.Event
}

func (r *recorder) emit(ev domain.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) content() string {
	var sb strings.Builder
	for _, ev := range r.events {
		if ev.IsContent() {
			sb.WriteString(ev.Content)
		}
	}
	return sb.String()
}

// scripted is a reasoning engine with fixed answers.
type scripted struct {
	intent      domain.Intent
	fragments   []string
	classifyErr error
	genErr      error
	block       bool
}

func (s *scripted) Classify(ctx context.Context, _ ports.ClassifyRequest) (domain.Intent, error) {
	return s.intent, s.classifyErr
}

func (s *scripted) Generate(ctx context.Context, _ ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if s.genErr != nil {
			yield("", s.genErr)
		}
	}
}

func newEngine(t *testing.T, reasoner ports.ReasoningEngine, opts ...caregraph.Option) *caregraph.Engine {
	t.Helper()
	eng, err := caregraph.New(reasoner, opts...)
	require.NoError(t, err)
	return eng
}

func TestEngine_NewThreadToClinical(t *testing.T) {
	eng := newEngine(t, rules.New(0))
	ctx := context.Background()

	var rec recorder
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "I have a sharp pain in my left knee"}, rec.emit)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(rec.events), 3)
	assert.Equal(t, domain.ThreadIDEvent(res.ThreadID), rec.events[0])
	assert.Equal(t, domain.AgentEvent(domain.Clinical), rec.events[1])
	for _, ev := range rec.events[2:] {
		assert.Equal(t, domain.EventToken, ev.Type)
	}
	assert.True(t, res.NewThread)
	assert.Equal(t, domain.Triage, res.Decision.Previous)

	thread, err := eng.Sessions().Load(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.Clinical, thread.Active)
	require.Len(t, thread.History, 2)
	assert.Equal(t, rec.content(), thread.History[1].Content, "tokens concatenate to the stored reply")
	assert.Equal(t, domain.Clinical, thread.History[1].Responder)
}

func TestEngine_ClinicalToScheduling(t *testing.T) {
	eng := newEngine(t, rules.New(0))
	ctx := context.Background()

	var first recorder
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "my knee hurts"}, first.emit)
	require.NoError(t, err)

	var second recorder
	res2, err := eng.Turn(ctx, caregraph.TurnRequest{ThreadID: res.ThreadID, Message: "book an appointment"}, second.emit)
	require.NoError(t, err)

	assert.Equal(t, res.ThreadID, res2.ThreadID)
	assert.False(t, res2.NewThread)
	assert.Empty(t, second.ofType(domain.EventThreadID))
	assert.Equal(t, []domain.Event{domain.AgentEvent(domain.Scheduling)}, second.ofType(domain.EventAgent))
	assert.Equal(t, domain.AgentEvent(domain.Scheduling), second.events[0], "handoff precedes content")
	assert.Equal(t, domain.Clinical, res2.Decision.Previous)
	assert.Equal(t, domain.Scheduling, res2.Decision.Next)
}

func TestEngine_ThreadIDOnlyOnFirstTurn(t *testing.T) {
	eng := newEngine(t, rules.New(0))
	ctx := context.Background()

	threadID := ""
	total := 0
	for _, msg := range []string{"hello", "my invoice", "thanks", "fever"} {
		var rec recorder
		res, err := eng.Turn(ctx, caregraph.TurnRequest{ThreadID: threadID, Message: msg}, rec.emit)
		require.NoError(t, err)
		threadID = res.ThreadID
		total += len(rec.ofType(domain.EventThreadID))
	}
	assert.Equal(t, 1, total)
}

func TestEngine_SameResponderNoAgentEvent(t *testing.T) {
	eng := newEngine(t, &scripted{intent: domain.IntentIdentity, fragments: []string{"Welcome"}})

	var rec recorder
	_, err := eng.Turn(context.Background(), caregraph.TurnRequest{Message: "hi"}, rec.emit)
	require.NoError(t, err)
	assert.Empty(t, rec.ofType(domain.EventAgent))
}

func TestEngine_UnknownThreadStartsFresh(t *testing.T) {
	eng := newEngine(t, rules.New(0))

	var rec recorder
	res, err := eng.Turn(context.Background(), caregraph.TurnRequest{ThreadID: "gone", Message: "hi"}, rec.emit)
	require.NoError(t, err)

	assert.NotEqual(t, "gone", res.ThreadID)
	assert.Equal(t, []domain.Event{domain.ThreadIDEvent(res.ThreadID)}, rec.ofType(domain.EventThreadID))
}

func TestEngine_MessageDelivery(t *testing.T) {
	eng := newEngine(t, &scripted{intent: domain.IntentPayment, fragments: []string{"Your ", "bill ", "is paid."}},
		caregraph.WithDelivery(caregraph.DeliverMessage))

	var rec recorder
	_, err := eng.Turn(context.Background(), caregraph.TurnRequest{Message: "bill"}, rec.emit)
	require.NoError(t, err)

	assert.Empty(t, rec.ofType(domain.EventToken))
	assert.Equal(t, []domain.Event{domain.MessageEvent("Your bill is paid.")}, rec.ofType(domain.EventMessage))
}

func TestEngine_ClassifierFailure(t *testing.T) {
	eng := newEngine(t, &scripted{classifyErr: errors.New("model down")})
	ctx := context.Background()

	var rec recorder
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "hi"}, rec.emit)
	require.NoError(t, err, "reasoning failures are turn-scoped")

	require.Len(t, rec.events, 2)
	assert.Equal(t, domain.ErrorEvent(caregraph.MsgUnavailable), rec.events[1])

	thread, err := eng.Sessions().Load(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Len(t, thread.History, 1, "user turn is kept")
	assert.Equal(t, domain.Triage, thread.Active)
}

func TestEngine_GeneratorFailureKeepsPartialReply(t *testing.T) {
	eng := newEngine(t, &scripted{intent: domain.IntentMedical, fragments: []string{"Rest ", "your "}, genErr: errors.New("stream reset")})
	ctx := context.Background()

	var rec recorder
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "knee"}, rec.emit)
	require.NoError(t, err)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, "Rest your ", rec.content())

	thread, err := eng.Sessions().Load(ctx, res.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread.History, 2)
	assert.Equal(t, "Rest your ", thread.History[1].Content)
	assert.Equal(t, domain.Clinical, thread.Active, "handoff is not rolled back")
}

func TestEngine_TurnTimeout(t *testing.T) {
	eng := newEngine(t, &scripted{intent: domain.IntentMedical, fragments: []string{"Let me think"}, block: true},
		caregraph.WithTurnTimeout(50*time.Millisecond))

	var rec recorder
	start := time.Now()
	_, err := eng.Turn(context.Background(), caregraph.TurnRequest{Message: "knee"}, rec.emit)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.ErrorEvent(caregraph.MsgTimeout), rec.events[len(rec.events)-1])
}

func TestEngine_EmitFailureIsReturned(t *testing.T) {
	eng := newEngine(t, rules.New(0))
	ctx := context.Background()
	gone := errors.New("client gone")

	var threadID string
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "my knee hurts"}, func(ev domain.Event) error {
		if ev.Type == domain.EventThreadID {
			threadID = ev.ThreadID
			return nil
		}
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, threadID, res.ThreadID)

	thread, err := eng.Sessions().Load(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, domain.Clinical, thread.Active, "partial effects are persisted")
	assert.Len(t, thread.History, 1)
}

func TestEngine_HandoffsFollowEdges(t *testing.T) {
	topo := domain.DefaultTopology()
	topo.Edges = []domain.Edge{
		{Source: domain.Triage, Target: domain.Clinical, Label: "Medical symptoms"},
		{Source: domain.Triage, Target: domain.Billing, Label: "Billing questions"},
		{Source: domain.Triage, Target: domain.Scheduling, Label: "Booking/scheduling"},
		{Source: domain.Clinical, Target: domain.Triage, Label: "Other needs"},
		{Source: domain.Scheduling, Target: domain.Triage, Label: "Other needs"},
		{Source: domain.Billing, Target: domain.Triage, Label: "Other needs"},
	}

	var handoffs []*domain.HandoffEvent
	var ends []*domain.TurnEvent
	eng := newEngine(t, rules.New(0),
		caregraph.WithTopology(topo),
		caregraph.WithLifecycleHooks(domain.LifecycleHooks{
			OnHandoff: func(_ context.Context, ev *domain.HandoffEvent) { handoffs = append(handoffs, ev) },
			OnTurnEnd: func(_ context.Context, ev *domain.TurnEvent) { ends = append(ends, ev) },
		}))
	ctx := context.Background()

	threadID := ""
	active := domain.Triage
	for _, msg := range []string{"my knee hurts", "pay my invoice", "book a visit", "fever again"} {
		var rec recorder
		res, err := eng.Turn(ctx, caregraph.TurnRequest{ThreadID: threadID, Message: msg}, rec.emit)
		require.NoError(t, err)
		threadID = res.ThreadID

		for _, ev := range rec.ofType(domain.EventAgent) {
			assert.True(t, topo.HasEdge(active, ev.Agent), "%s -> %s must be an edge", active, ev.Agent)
			active = ev.Agent
		}
	}

	assert.Equal(t, domain.Clinical, active)
	assert.Len(t, ends, 4)
	require.NotEmpty(t, handoffs)
	assert.True(t, handoffs[len(handoffs)-1].ViaHub)
}

func TestEngine_SerializesTurnsOnThread(t *testing.T) {
	eng := newEngine(t, &scripted{intent: domain.IntentMedical, fragments: []string{"ok"}})
	ctx := context.Background()

	var rec recorder
	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "start"}, rec.emit)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Turn(ctx, caregraph.TurnRequest{ThreadID: res.ThreadID, Message: "again"}, func(domain.Event) error { return nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	thread, err := eng.Sessions().Load(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Len(t, thread.History, 22)
}

func TestNew_Validation(t *testing.T) {
	_, err := caregraph.New(nil)
	assert.Error(t, err)

	_, err = caregraph.New(rules.New(0), caregraph.WithTopology(&domain.Topology{}))
	assert.ErrorIs(t, err, domain.ErrInvalidTopology)

	_, err = caregraph.New(rules.New(0), caregraph.WithDelivery("smoke"))
	assert.Error(t, err)

	_, err = caregraph.ParseDelivery("MESSAGE")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, caregraph.Version)
}
