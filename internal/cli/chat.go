package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/presentation/graph"
	"github.com/aretw0/caregraph/internal/presentation/tui"
	"github.com/aretw0/caregraph/pkg/client"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
)

// ErrAttachmentUnsupported is returned when the transport cannot carry files.
var ErrAttachmentUnsupported = errors.New("attachments are not supported over this transport")

// sendFunc runs one turn. attachment is a local file path or empty.
type sendFunc func(ctx context.Context, text, attachment string) error

// ChatSession is an interactive conversation bound to one transport.
type ChatSession struct {
	rec      *client.Reconciler
	viz      *client.VisualSync
	topology *domain.Topology
	visited  []domain.Responder
	printed  int

	send  sendFunc
	close func() error
}

func newChatSession(topology *domain.Topology, threadID string, logger *slog.Logger) *ChatSession {
	viz := client.NewVisualSync(topology)
	opts := []client.ReconcilerOption{
		client.WithVisualSync(viz),
		client.WithReconcilerLogger(logger),
	}
	if threadID != "" {
		opts = append(opts, client.WithThreadID(threadID))
	}
	return &ChatSession{
		rec:      client.NewReconciler(opts...),
		viz:      viz,
		topology: topology,
		visited:  []domain.Responder{viz.Current()},
		close:    func() error { return nil },
	}
}

// NewLocalChat talks to an in-process engine. attachments may be nil.
func NewLocalChat(engine *caregraph.Engine, attachments ports.AttachmentStore, threadID string, logger *slog.Logger) *ChatSession {
	c := newChatSession(engine.Topology(), threadID, logger)
	c.send = func(ctx context.Context, text, attachment string) error {
		var ref string
		if attachment != "" {
			if attachments == nil {
				return ErrAttachmentUnsupported
			}
			f, err := os.Open(attachment)
			if err != nil {
				return err
			}
			defer f.Close()
			ref, err = attachments.Put(ctx, filepath.Base(attachment), f)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
		}

		c.rec.BeginTurn(text, ref)
		_, err := engine.Turn(ctx, caregraph.TurnRequest{
			ThreadID: c.rec.ThreadID(),
			Message:  domain.AnnotateAttachment(text, ref),
		}, func(ev domain.Event) error {
			c.rec.Apply(ev)
			return nil
		})
		switch {
		case err == nil:
			c.rec.EndTurn()
		case ctx.Err() != nil:
			c.rec.Abort()
		default:
			c.rec.Fail(err)
		}
		return err
	}
	return c
}

// NewRemoteChat talks to a server over the chunked HTTP binding.
func NewRemoteChat(ctx context.Context, baseURL, threadID string, logger *slog.Logger) (*ChatSession, error) {
	binding := client.NewHTTPBinding(baseURL, client.WithHTTPLogger(logger))
	topology, err := binding.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph: %w", err)
	}

	c := newChatSession(topology, threadID, logger)
	conv := client.NewConversation(binding, c.rec)
	c.send = func(ctx context.Context, text, attachment string) error {
		var opts []client.SendOption
		if attachment != "" {
			f, err := os.Open(attachment)
			if err != nil {
				return err
			}
			defer f.Close()
			opts = append(opts, client.WithAttachment(filepath.Base(attachment), f))
		}
		return conv.Send(ctx, text, opts...)
	}
	return c, nil
}

// NewSocketChat talks to a server over its WebSocket endpoint. The connection
// is the thread, so no thread id can be resumed.
func NewSocketChat(ctx context.Context, baseURL string, logger *slog.Logger) (*ChatSession, error) {
	binding := client.NewHTTPBinding(baseURL, client.WithHTTPLogger(logger))
	topology, err := binding.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph: %w", err)
	}
	wsURL, err := SocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	socket := client.NewSocketBinding(wsURL, client.WithSocketLogger(logger))
	if err := socket.Connect(ctx); err != nil {
		return nil, err
	}

	c := newChatSession(topology, "", logger)
	conv := client.NewSocketConversation(socket, c.rec)
	c.close = func() error {
		conv.Close()
		return socket.Close()
	}
	c.send = func(ctx context.Context, text, attachment string) error {
		if attachment != "" {
			return ErrAttachmentUnsupported
		}
		return conv.Send(ctx, text)
	}
	return c, nil
}

// SocketURL maps an http(s) base URL to the chat socket endpoint.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat"
	return u.String(), nil
}

// Reconciler exposes the conversation state.
func (c *ChatSession) Reconciler() *client.Reconciler {
	return c.rec
}

// Topology returns the graph the conversation moves on.
func (c *ChatSession) Topology() *domain.Topology {
	return c.topology
}

// Close releases the transport.
func (c *ChatSession) Close() error {
	return c.close()
}

// Send runs one turn and prints every entry not printed yet, including ones
// that arrived after the previous turn ended.
func (c *ChatSession) Send(ctx context.Context, p *tui.Printer, text, attachment string) error {
	from := c.rec.Active()

	err := c.send(ctx, text, attachment)

	if to := c.rec.Active(); to != from {
		p.Handoff(from, to)
		if !slices.Contains(c.visited, to) {
			c.visited = append(c.visited, to)
		}
	}
	transcript := c.rec.Transcript()
	if c.printed > len(transcript) {
		c.printed = len(transcript)
	}
	for _, e := range transcript[c.printed:] {
		p.Entry(e)
	}
	c.printed = len(transcript)
	return err
}

// Mermaid draws the topology with the conversation's progress on it.
func (c *ChatSession) Mermaid() string {
	return graph.GenerateMermaid(c.topology, &graph.Overlay{
		Current:  c.viz.Current(),
		Previous: c.viz.Previous(),
		Visited:  slices.Clone(c.visited),
	})
}

// Run reads lines from in until EOF, /exit or ctx cancellation.
//
// Commands:
//
//	/attach <path> [text]  send a file with an optional message
//	/graph                 print the graph with the live highlight
//	/thread                print the thread id
//	/exit                  leave
func (c *ChatSession) Run(ctx context.Context, in io.Reader, out io.Writer, p *tui.Printer, logger *slog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/graph":
			fmt.Fprintln(out, c.Mermaid())
			continue
		case line == "/thread":
			fmt.Fprintln(out, c.rec.ThreadID())
			continue
		}

		text, attachment := line, ""
		if rest, ok := strings.CutPrefix(line, "/attach "); ok {
			attachment, text, _ = strings.Cut(strings.TrimSpace(rest), " ")
			text = strings.TrimSpace(text)
		}

		if err := c.Send(ctx, p, text, attachment); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Debug("Turn failed", "err", err)
			if errors.Is(err, ErrAttachmentUnsupported) || errors.Is(err, client.ErrUpload) || errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(out, "%s\n", err)
			}
		}
	}
}
