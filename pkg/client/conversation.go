package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/caregraph/pkg/domain"
)

// Conversation runs turns over the chunked binding and reconciles them.
type Conversation struct {
	binding *HTTPBinding
	rec     *Reconciler
}

// NewConversation pairs a binding with a reconciler.
func NewConversation(binding *HTTPBinding, rec *Reconciler) *Conversation {
	return &Conversation{binding: binding, rec: rec}
}

// Reconciler returns the state the conversation feeds.
func (c *Conversation) Reconciler() *Reconciler {
	return c.rec
}

type sendConfig struct {
	filename   string
	attachment io.Reader
	lat, lon   *float64
}

// SendOption configures a single turn.
type SendOption func(*sendConfig)

// WithAttachment uploads r before the turn and references it in the message.
func WithAttachment(filename string, r io.Reader) SendOption {
	return func(c *sendConfig) {
		c.filename = filename
		c.attachment = r
	}
}

// WithLocation attaches the user's coordinates to the turn.
func WithLocation(latitude, longitude float64) SendOption {
	return func(c *sendConfig) {
		c.lat = &latitude
		c.lon = &longitude
	}
}

// Send runs one turn. An attachment is uploaded first; if that fails the turn
// is not submitted and the transcript is untouched. A canceled ctx discards the
// turn's partial responder entries; any other failure adds one failure entry
// when no content had arrived.
func (c *Conversation) Send(ctx context.Context, text string, opts ...SendOption) error {
	var cfg sendConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var ref string
	if cfg.attachment != nil {
		var err error
		ref, err = c.binding.Upload(ctx, cfg.filename, cfg.attachment)
		if err != nil {
			if !errors.Is(err, ErrUpload) {
				err = fmt.Errorf("%w: %w", ErrUpload, err)
			}
			return err
		}
	}

	req := ChatRequest{
		Message:   domain.AnnotateAttachment(text, ref),
		Latitude:  cfg.lat,
		Longitude: cfg.lon,
	}
	if id := c.rec.ThreadID(); id != "" {
		req.ThreadID = &id
	}

	c.rec.BeginTurn(text, ref)
	err := c.binding.Chat(ctx, req, c.rec.Apply)
	switch {
	case err == nil:
		c.rec.EndTurn()
		return nil
	case ctx.Err() != nil:
		c.rec.Abort()
		return ctx.Err()
	default:
		c.rec.Fail(err)
		return err
	}
}

// SocketConversation reconciles the socket binding. The connection is the
// thread: there is no thread id and every reply arrives as one payload.
//
// Each turn ends at its first content frame or error record. Frames of a turn
// abandoned through ctx are dropped when they arrive after the next turn was
// sent. A frame arriving while no turn waits is folded into the transcript as
// is, so a trailing error record lands after the reply it follows.
type SocketConversation struct {
	socket *SocketBinding
	rec    *Reconciler
	cancel func()

	turnMu sync.Mutex // one turn at a time

	mu    sync.Mutex
	sent  int // turns written to the socket
	seen  int // terminal frames received
	reply chan struct{}
}

// NewSocketConversation subscribes rec to the socket's events.
func NewSocketConversation(socket *SocketBinding, rec *Reconciler) *SocketConversation {
	sc := &SocketConversation{socket: socket, rec: rec}
	sc.cancel = socket.Subscribe(sc.apply)
	return sc
}

// Reconciler returns the state the conversation feeds.
func (c *SocketConversation) Reconciler() *Reconciler {
	return c.rec
}

func (c *SocketConversation) apply(ev domain.Event) {
	terminal := ev.IsContent() || ev.Type == domain.EventError

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen < c.sent {
		if c.seen+1 < c.sent {
			// Left over from an abandoned turn.
			if terminal {
				c.seen++
			}
			return
		}
		c.rec.Apply(ev)
		if terminal {
			c.seen++
			if c.reply != nil {
				c.reply <- struct{}{}
				c.reply = nil
			}
		}
		return
	}
	c.rec.Apply(ev)
}

// Send runs one turn and blocks until its reply, an error record, the loss of
// the connection or ctx cancellation. A lost connection adds one failure entry
// when no content had arrived; a canceled ctx discards the turn's responder
// entries.
func (c *SocketConversation) Send(ctx context.Context, text string) error {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	done := c.socket.Done()
	reply := make(chan struct{}, 1)

	c.mu.Lock()
	c.rec.BeginTurn(text, "")
	c.sent++
	c.reply = reply
	c.mu.Unlock()

	if err := c.socket.Send(ctx, text); err != nil {
		c.mu.Lock()
		c.sent--
		c.reply = nil
		c.mu.Unlock()
		c.rec.Fail(err)
		return err
	}

	select {
	case <-reply:
		c.rec.EndTurn()
		return nil
	case <-done:
		select {
		case <-reply:
			c.rec.EndTurn()
			return nil
		default:
		}
		c.stopWaiting()
		c.rec.Fail(ErrTransport)
		return fmt.Errorf("%w: connection %s", ErrTransport, c.socket.State())
	case <-ctx.Done():
		c.stopWaiting()
		c.rec.Abort()
		return ctx.Err()
	}
}

func (c *SocketConversation) stopWaiting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = nil
}

// Close unsubscribes the reconciler. The socket itself is left to its owner.
func (c *SocketConversation) Close() {
	c.cancel()
}
