package caregraph

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/internal/runtime"
	"github.com/aretw0/caregraph/pkg/adapters/memory"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/aretw0/caregraph/pkg/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Delivery selects how a responder's reply goes on the wire.
type Delivery string

const (
	// DeliverTokens streams each fragment as a token event as soon as it is produced.
	DeliverTokens Delivery = "tokens"
	// DeliverMessage buffers the reply and sends one message event, for older clients.
	DeliverMessage Delivery = "message"
)

// ParseDelivery maps a configuration value to a Delivery.
func ParseDelivery(s string) (Delivery, error) {
	switch Delivery(strings.ToLower(strings.TrimSpace(s))) {
	case "", DeliverTokens:
		return DeliverTokens, nil
	case DeliverMessage:
		return DeliverMessage, nil
	}
	return "", fmt.Errorf("unknown delivery mode %q", s)
}

// DefaultTurnTimeout bounds the reasoning engine calls of one turn.
const DefaultTurnTimeout = 2 * time.Minute

// Engine is the high-level entry point for the caregraph library.
// It owns the handoff policy and runs one turn at a time per thread.
type Engine struct {
	machine    *runtime.Machine
	topology   *domain.Topology
	sessions   *session.Manager
	store      ports.ThreadStore
	classifier ports.Classifier
	generator  ports.Generator

	delivery    Delivery
	turnTimeout time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithTopology replaces the built-in handoff graph.
func WithTopology(t *domain.Topology) Option {
	return func(e *Engine) {
		e.topology = t
	}
}

// WithSessionManager injects a preconfigured session manager (distributed lock, custom store).
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithStore sets the thread store used by the default session manager.
func WithStore(s ports.ThreadStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClassifier overrides the reasoning engine's classifier.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithGenerator overrides the reasoning engine's generator.
func WithGenerator(g ports.Generator) Option {
	return func(e *Engine) {
		e.generator = g
	}
}

// WithDelivery selects token streaming (default) or single message delivery.
func WithDelivery(d Delivery) Option {
	return func(e *Engine) {
		e.delivery = d
	}
}

// WithTurnTimeout bounds the reasoning calls of a turn. Zero disables the bound.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.turnTimeout = d
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer used for turn spans (default: the global provider).
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes an Engine. reasoner may be nil when both WithClassifier
// and WithGenerator are given.
func New(reasoner ports.ReasoningEngine, opts ...Option) (*Engine, error) {
	eng := &Engine{
		delivery:    DeliverTokens,
		turnTimeout: DefaultTurnTimeout,
		now:         time.Now,
	}
	if reasoner != nil {
		eng.classifier = reasoner
		eng.generator = reasoner
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.classifier == nil || eng.generator == nil {
		return nil, errors.New("a classifier and a generator are required")
	}
	if eng.delivery != DeliverTokens && eng.delivery != DeliverMessage {
		return nil, fmt.Errorf("unknown delivery mode %q", eng.delivery)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.tracer == nil {
		eng.tracer = otel.Tracer("github.com/aretw0/caregraph")
	}
	if eng.topology == nil {
		eng.topology = domain.DefaultTopology()
	}

	machine, err := runtime.NewMachine(eng.topology)
	if err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	eng.machine = machine

	if eng.sessions == nil {
		store := eng.store
		if store == nil {
			store = memory.NewStore()
		}
		eng.sessions = session.NewManager(store,
			session.WithInitialResponder(machine.Initial()),
			session.WithLogger(eng.logger),
		)
	}

	return eng, nil
}

// Topology returns the handoff graph the engine enforces.
func (e *Engine) Topology() *domain.Topology {
	return e.topology
}

// Sessions returns the session manager owning the threads.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Delivery returns the configured delivery mode.
func (e *Engine) Delivery() Delivery {
	return e.delivery
}
