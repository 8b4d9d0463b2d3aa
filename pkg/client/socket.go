package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of a socket connection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// SocketBinding owns one persistent connection to the socket endpoint.
// Callers observe it through Subscribe and OnState, each returning a cancel func.
type SocketBinding struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     ConnState
	closing   bool
	done      chan struct{}
	nextID    int
	events    map[int]func(domain.Event)
	listeners map[int]func(ConnState)

	writeMu sync.Mutex
}

// SocketOption configures the SocketBinding.
type SocketOption func(*SocketBinding)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) SocketOption {
	return func(s *SocketBinding) {
		s.dialer = d
	}
}

// WithSocketLogger sets the logger.
func WithSocketLogger(logger *slog.Logger) SocketOption {
	return func(s *SocketBinding) {
		s.logger = logger
	}
}

// WithHeader adds headers to the handshake.
func WithHeader(h http.Header) SocketOption {
	return func(s *SocketBinding) {
		s.header = h
	}
}

// NewSocketBinding returns an idle binding for the ws:// or wss:// url.
func NewSocketBinding(url string, opts ...SocketOption) *SocketBinding {
	s := &SocketBinding{
		url:       url,
		dialer:    websocket.DefaultDialer,
		logger:    logging.NewNop(),
		events:    make(map[int]func(domain.Event)),
		listeners: make(map[int]func(ConnState)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *SocketBinding) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the endpoint and starts delivering events to subscribers.
// It returns nil without dialing when the binding is already open or another
// Connect is in flight.
func (s *SocketBinding) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, StateConnecting)

	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		s.setState(StateErrored)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.closing = false
	s.done = done
	s.mu.Unlock()
	s.setState(StateOpen)

	go s.readLoop(conn, done)
	return nil
}

func (s *SocketBinding) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.conn = nil
			s.mu.Unlock()

			if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setState(StateClosed)
			} else {
				s.logger.Warn("Socket read failed", "err", err)
				s.setState(StateErrored)
			}
			_ = conn.Close()
			return
		}
		s.dispatch(protocol.DecodeSocketPayload(data))
	}
}

// Subscribe registers fn for every decoded event.
func (s *SocketBinding) Subscribe(fn func(domain.Event)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.events[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, id)
	}
}

// OnState registers fn for every state change.
func (s *SocketBinding) OnState(fn func(ConnState)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Send writes a user message frame.
func (s *SocketBinding) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteJSON(protocol.ClientMessage(text)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Close performs the closing handshake and waits for the read loop to exit.
func (s *SocketBinding) Close() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.closing = true
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = conn.Close()
		<-done
	}
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Done is closed when the current connection's read loop exits.
func (s *SocketBinding) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *SocketBinding) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

func (s *SocketBinding) listenersLocked() []func(ConnState) {
	listeners := make([]func(ConnState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notify(listeners []func(ConnState), state ConnState) {
	for _, fn := range listeners {
		fn(state)
	}
}

func (s *SocketBinding) dispatch(ev domain.Event) {
	s.mu.Lock()
	subs := make([]func(domain.Event), 0, len(s.events))
	for _, fn := range s.events {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
