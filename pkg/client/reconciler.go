package client

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
)

// ErrorPrefix marks transcript entries produced by an error event.
const ErrorPrefix = "Error: "

// FailureText is the synthetic entry added when a turn fails before any content.
const FailureText = "Sorry, I could not reach the assistant. Please try again."

// Entry is one line of the rendered transcript.
type Entry struct {
	Role       domain.Role
	Responder  domain.Responder
	Content    string
	Attachment string
	// Failed marks error and synthetic failure entries.
	Failed bool
}

// Reconciler replays a turn's events into a transcript and an active responder.
// Events must be applied in arrival order. It is safe for concurrent use.
type Reconciler struct {
	mu sync.Mutex

	threadID   string
	active     domain.Responder
	transcript []Entry

	turnStart  int  // index of the first responder entry of the current turn
	open       bool // the tail entry is still being built from tokens
	ended      bool // an error event ended the turn
	gotContent bool

	viz    *VisualSync
	logger *slog.Logger
}

// ReconcilerOption configures the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithVisualSync forwards active responder changes to v.
func WithVisualSync(v *VisualSync) ReconcilerOption {
	return func(r *Reconciler) {
		r.viz = v
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithThreadID resumes an existing thread.
func WithThreadID(id string) ReconcilerOption {
	return func(r *Reconciler) {
		r.threadID = id
	}
}

// NewReconciler returns an empty Reconciler. The active responder starts at Triage.
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		active: domain.Triage,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.viz != nil {
		r.active = r.viz.Current()
	}
	return r
}

// BeginTurn appends the user entry and resets per-turn state.
func (r *Reconciler) BeginTurn(text, attachment string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transcript = append(r.transcript, Entry{Role: domain.RoleUser, Content: text, Attachment: attachment})
	r.turnStart = len(r.transcript)
	r.open = false
	r.ended = false
	r.gotContent = false
}

// Apply folds one event into the state.
func (r *Reconciler) Apply(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		r.logger.Debug("Ignoring event after turn end", "type", ev.Type)
		return
	}

	switch ev.Type {
	case domain.EventThreadID:
		if r.threadID != "" && r.threadID != ev.ThreadID {
			r.logger.Warn("Thread id replaced", "old", r.threadID, "new", ev.ThreadID)
		}
		r.threadID = ev.ThreadID

	case domain.EventAgent:
		r.active = ev.Agent
		if r.viz != nil {
			r.viz.Update(ev.Agent)
		}

	case domain.EventToken:
		r.gotContent = true
		if r.open {
			r.transcript[len(r.transcript)-1].Content += ev.Content
			return
		}
		r.transcript = append(r.transcript, Entry{Role: domain.RoleResponder, Responder: r.active, Content: ev.Content})
		r.open = true

	case domain.EventMessage:
		r.gotContent = true
		r.open = false
		r.transcript = append(r.transcript, Entry{Role: domain.RoleResponder, Responder: r.active, Content: ev.Content})

	case domain.EventError:
		r.gotContent = true
		r.open = false
		r.ended = true
		r.transcript = append(r.transcript, Entry{
			Role:      domain.RoleResponder,
			Responder: r.active,
			Content:   ErrorPrefix + ev.Content,
			Failed:    true,
		})

	default:
		r.logger.Warn("Ignoring unknown event", "type", ev.Type)
	}
}

// EndTurn closes the streaming tail after a normal stream close.
func (r *Reconciler) EndTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
}

// Fail records a transport failure. A synthetic entry is added only when the
// turn produced no content, so rendered partial progress is kept as is.
func (r *Reconciler) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.open = false
	if r.gotContent {
		r.logger.Warn("Turn failed after content", "err", err)
		return
	}
	r.logger.Warn("Turn failed", "err", err)
	r.transcript = append(r.transcript, Entry{
		Role:      domain.RoleResponder,
		Responder: r.active,
		Content:   FailureText,
		Failed:    true,
	})
	r.gotContent = true
}

// Abort discards the current turn's responder entries without a trace.
// Used when the client itself disconnected mid-stream.
func (r *Reconciler) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.turnStart <= len(r.transcript) {
		r.transcript = r.transcript[:r.turnStart]
	}
	r.open = false
	r.ended = true
}

// ThreadID returns the thread identifier, empty before the first turn.
func (r *Reconciler) ThreadID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threadID
}

// Active returns the active responder.
func (r *Reconciler) Active() domain.Responder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Transcript returns a copy of the transcript.
func (r *Reconciler) Transcript() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transcript)
}

// Last returns the most recent entry, if any.
func (r *Reconciler) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transcript) == 0 {
		return Entry{}, false
	}
	return r.transcript[len(r.transcript)-1], true
}
