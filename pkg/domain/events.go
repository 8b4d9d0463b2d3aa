package domain

import (
	"context"
	"fmt"
	"time"
)

// EventType discriminates the variants of the stream event union.
type EventType string

const (
	EventThreadID EventType = "thread_id"
	EventAgent    EventType = "agent_event"
	EventToken    EventType = "token"
	EventMessage  EventType = "message"
	EventError    EventType = "error"
)

// Event is one frame of a turn's stream.
// Within a turn: at most one thread_id (first turn only), then agent_event*,
// then token* or a single message, optionally ended early by error.
type Event struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"thread_id,omitempty"`
	Agent    Responder `json:"agent,omitempty"`
	Content  string    `json:"content,omitempty"`
}

func ThreadIDEvent(id string) Event     { return Event{Type: EventThreadID, ThreadID: id} }
func AgentEvent(r Responder) Event      { return Event{Type: EventAgent, Agent: r} }
func TokenEvent(fragment string) Event  { return Event{Type: EventToken, Content: fragment} }
func MessageEvent(content string) Event { return Event{Type: EventMessage, Content: content} }
func ErrorEvent(msg string) Event       { return Event{Type: EventError, Content: msg} }

// IsContent reports whether the event carries transcript content.
func (e Event) IsContent() bool {
	return e.Type == EventToken || e.Type == EventMessage
}

// Validate checks that the event is a known variant with its required fields.
func (e Event) Validate() error {
	switch e.Type {
	case EventThreadID:
		if e.ThreadID == "" {
			return fmt.Errorf("%w: thread_id event without id", ErrInvalidEvent)
		}
	case EventAgent:
		if !e.Agent.Valid() {
			return fmt.Errorf("%w: agent_event names %q", ErrInvalidEvent, e.Agent)
		}
	case EventToken, EventMessage, EventError:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// TurnEvent describes the start or end of a turn.
type TurnEvent struct {
	Timestamp time.Time
	ThreadID  string
	NewThread bool
	Responder Responder
	Intent    Intent
	Duration  time.Duration
	Err       error
}

// HandoffEvent describes one applied transition.
type HandoffEvent struct {
	Timestamp time.Time
	ThreadID  string
	From      Responder
	To        Responder
	Label     string
	ViaHub    bool
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnTurnStart func(context.Context, *TurnEvent)
	OnHandoff   func(context.Context, *HandoffEvent)
	OnTurnEnd   func(context.Context, *TurnEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurnStart: chain(h.OnTurnStart, other.OnTurnStart),
		OnHandoff:   chain(h.OnHandoff, other.OnHandoff),
		OnTurnEnd:   chain(h.OnTurnEnd, other.OnTurnEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
