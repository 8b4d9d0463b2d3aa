package caregraph

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/internal/runtime"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// User-facing content of error events.
const (
	MsgUnavailable = "The assistant is unavailable right now. Please try again."
	MsgTimeout     = "The assistant took too long to answer. Please try again."
)

// TurnRequest is one inbound user message.
// An empty or unknown ThreadID starts a new thread.
type TurnRequest struct {
	ThreadID  string
	Message   string
	Latitude  *float64
	Longitude *float64
}

// Emitter writes one event to the transport. A non-nil error aborts the turn.
type Emitter func(domain.Event) error

// TurnResult summarizes a completed turn.
type TurnResult struct {
	ThreadID  string
	NewThread bool
	// Responder is the responder owning the thread after the turn.
	Responder domain.Responder
	Decision  runtime.Decision
	Reply     string
}

// Turn runs one turn: resolve the thread, classify, apply the handoff, and
// stream the reply. Events are passed to emit in order. Turns on the same
// thread are serialized.
//
// Reasoning failures are turn-scoped: they are reported as an error event and
// Turn returns nil. Emit and storage failures are returned. Effects already
// applied to the thread are kept in every case.
func (e *Engine) Turn(ctx context.Context, req TurnRequest, emit Emitter) (TurnResult, error) {
	ctx, span := e.tracer.Start(ctx, "caregraph.Turn")
	defer span.End()

	var result TurnResult
	err := e.sessions.WithThread(ctx, req.ThreadID, func(ctx context.Context, thread *domain.Thread, isNew bool) error {
		result.ThreadID = thread.ID
		result.NewThread = isNew
		span.SetAttributes(
			attribute.String("caregraph.thread_id", thread.ID),
			attribute.Bool("caregraph.new_thread", isNew),
		)
		ctx = logging.WithFields(ctx, logging.Fields{ThreadID: thread.ID, Component: "engine"})

		start := e.now()
		te := &domain.TurnEvent{Timestamp: start, ThreadID: thread.ID, NewThread: isNew, Responder: thread.Active}
		if e.hooks.OnTurnStart != nil {
			e.hooks.OnTurnStart(ctx, te)
		}

		err := e.runTurn(ctx, req, thread, isNew, emit, &result, te)

		result.Responder = thread.Active
		te.Duration = e.now().Sub(start)
		te.Responder = thread.Active
		te.Intent = result.Decision.Intent
		if te.Err == nil {
			te.Err = err
		}
		if e.hooks.OnTurnEnd != nil {
			e.hooks.OnTurnEnd(ctx, te)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (e *Engine) runTurn(ctx context.Context, req TurnRequest, thread *domain.Thread, isNew bool, emit Emitter, result *TurnResult, te *domain.TurnEvent) error {
	if isNew {
		if err := emit(domain.ThreadIDEvent(thread.ID)); err != nil {
			return err
		}
	}

	text, ref := domain.ExtractAttachment(req.Message)
	var loc *domain.Location
	if req.Latitude != nil && req.Longitude != nil {
		loc = &domain.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	prior := thread.Snapshot()
	thread.Append(domain.Turn{
		Role:       domain.RoleUser,
		Content:    text,
		Attachment: ref,
		Location:   loc,
		Timestamp:  e.now(),
	})

	rctx, cancel := e.reasoningContext(ctx)
	defer cancel()

	intent, err := e.classify(rctx, prior, text)
	if err != nil {
		te.Err = err
		return e.fail(ctx, emit, err)
	}

	decision, err := e.machine.Route(thread.Active, intent)
	if err != nil {
		te.Err = err
		return e.fail(ctx, emit, err)
	}
	result.Decision = decision

	for _, hop := range decision.Hops {
		thread.Active = hop.To
		if e.hooks.OnHandoff != nil {
			e.hooks.OnHandoff(ctx, &domain.HandoffEvent{
				Timestamp: e.now(),
				ThreadID:  thread.ID,
				From:      hop.From,
				To:        hop.To,
				Label:     hop.Label,
				ViaHub:    decision.ViaHub(),
			})
		}
		if err := emit(domain.AgentEvent(hop.To)); err != nil {
			return err
		}
	}
	if decision.Normalized {
		e.logger.WarnContext(ctx, "Handoff normalized to hub",
			"target", decision.Target,
			"responder", decision.Next,
		)
	}

	ctx = logging.WithFields(ctx, logging.Fields{ThreadID: thread.ID, Responder: string(thread.Active), Component: "engine"})
	reply, err := e.generate(rctx, ports.GenerateRequest{
		Responder:  thread.Active,
		Thread:     prior,
		Message:    text,
		Attachment: ref,
		Location:   loc,
	}, emit)
	result.Reply = reply

	if reply != "" {
		thread.Append(domain.Turn{
			Role:      domain.RoleResponder,
			Content:   reply,
			Responder: thread.Active,
			Timestamp: e.now(),
		})
	}
	var ee *emitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ee):
		return ee.err
	default:
		te.Err = err
		return e.fail(ctx, emit, err)
	}
}

func (e *Engine) reasoningContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.turnTimeout > 0 {
		return context.WithTimeout(ctx, e.turnTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) classify(ctx context.Context, thread *domain.Thread, text string) (domain.Intent, error) {
	ctx, span := e.tracer.Start(ctx, "caregraph.Classify")
	defer span.End()

	intent, err := e.classifier.Classify(ctx, ports.ClassifyRequest{Thread: thread, Message: text})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	intent = domain.ParseIntent(string(intent))
	span.SetAttributes(attribute.String("caregraph.intent", string(intent)))
	return intent, nil
}

// emitError marks a failure of the transport, as opposed to the generator.
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// generate streams the reply and returns the content produced so far.
func (e *Engine) generate(ctx context.Context, req ports.GenerateRequest, emit Emitter) (string, error) {
	ctx, span := e.tracer.Start(ctx, "caregraph.Generate", trace.WithAttributes(
		attribute.String("caregraph.responder", req.Responder.String()),
	))
	defer span.End()

	var sb strings.Builder
	for fragment, err := range e.generator.Generate(ctx, req) {
		if err != nil {
			span.RecordError(err)
			if ferr := e.flushMessage(&sb, emit); ferr != nil {
				return sb.String(), ferr
			}
			return sb.String(), err
		}
		if fragment == "" {
			continue
		}
		sb.WriteString(fragment)
		if e.delivery == DeliverTokens {
			if err := emit(domain.TokenEvent(fragment)); err != nil {
				return sb.String(), &emitError{err}
			}
		}
	}
	return sb.String(), e.flushMessage(&sb, emit)
}

// flushMessage sends the buffered reply in message delivery mode.
func (e *Engine) flushMessage(sb *strings.Builder, emit Emitter) error {
	if e.delivery != DeliverMessage || sb.Len() == 0 {
		return nil
	}
	if err := emit(domain.MessageEvent(sb.String())); err != nil {
		return &emitError{err}
	}
	return nil
}

// fail reports a reasoning failure to the client. Only the emit error is returned.
func (e *Engine) fail(ctx context.Context, emit Emitter, cause error) error {
	msg := MsgUnavailable
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		msg = MsgTimeout
	case ctx.Err() != nil:
		// The client is gone; nobody reads the error event.
		e.logger.DebugContext(ctx, "Turn canceled", "err", cause)
		return ctx.Err()
	}
	e.logger.ErrorContext(ctx, "Turn failed", "err", cause)
	return emit(domain.ErrorEvent(msg))
}
