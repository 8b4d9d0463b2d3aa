package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/sanitize"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
	"github.com/gorilla/websocket"
)

const socketWriteWait = 10 * time.Second

// ChatSocket handles GET /ws/chat. A connection is one thread: it starts on
// the first message and lives until the socket closes. For each message the
// server pushes the turn's agent_event records, then exactly one terminal
// frame: the reply as a {text} object, or a structured error record.
func (s *Server) ChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Socket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(s.maxInput) + 1024)

	ctx := r.Context()
	threadID := ""
	s.logger.Info("Socket connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Socket closed unexpectedly", "thread_id", threadID, "err", err)
			} else {
				s.logger.Info("Socket disconnected", "thread_id", threadID)
			}
			return
		}

		text, err := sanitize.Message(clientText(data), s.maxInput)
		if err != nil {
			if werr := s.writeFrame(conn, domain.ErrorEvent(err.Error())); werr != nil {
				return
			}
			continue
		}

		out := &socketTurn{server: s, conn: conn}
		res, err := s.engine.Turn(ctx, caregraph.TurnRequest{ThreadID: threadID, Message: text}, out.emit)
		threadID = res.ThreadID
		var we *socketWriteError
		if errors.As(err, &we) || ctx.Err() != nil {
			s.logger.Info("Socket dropped during turn", "thread_id", threadID, "err", err)
			return
		}
		if err != nil {
			s.logger.Error("Socket turn failed", "thread_id", threadID, "err", err)
		}
		if werr := out.finish(err != nil); werr != nil {
			s.logger.Info("Socket dropped during turn", "thread_id", threadID, "err", werr)
			return
		}
	}
}

// clientText extracts the user text from a client frame. Anything that is
// not a structured message frame is taken as literal text.
func clientText(data []byte) string {
	var frame protocol.ClientFrame
	if err := json.Unmarshal(data, &frame); err == nil && frame.Type == "message" {
		return frame.Content
	}
	return string(data)
}

// socketWriteError marks a failed socket write.
type socketWriteError struct{ err error }

func (e *socketWriteError) Error() string { return "socket write: " + e.err.Error() }
func (e *socketWriteError) Unwrap() error { return e.err }

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := conn.WriteJSON(v); err != nil {
		return &socketWriteError{err}
	}
	return nil
}

// socketTurn adapts the event stream of one turn to the socket frames.
// Content is buffered and every turn ends in exactly one terminal frame: the
// reply as a {text} object, or an error record. A failed turn drops its
// partial text from the wire; the thread history still keeps it.
type socketTurn struct {
	server *Server
	conn   *websocket.Conn
	text   strings.Builder
	ended  bool
}

func (t *socketTurn) emit(ev domain.Event) error {
	switch ev.Type {
	case domain.EventThreadID:
		// The connection is the thread; the id stays server side.
		return nil
	case domain.EventToken, domain.EventMessage:
		if !t.ended {
			t.text.WriteString(ev.Content)
		}
		return nil
	case domain.EventError:
		if t.ended {
			return nil
		}
		t.ended = true
		t.text.Reset()
	}
	return t.server.writeFrame(t.conn, ev)
}

// finish writes the terminal frame unless an error record already ended the
// turn. failed reports an error the engine returned instead of emitting; a
// reply that was fully produced is still delivered.
func (t *socketTurn) finish(failed bool) error {
	if t.ended {
		return nil
	}
	t.ended = true
	if failed && t.text.Len() == 0 {
		return t.server.writeFrame(t.conn, domain.ErrorEvent(caregraph.MsgUnavailable))
	}
	frame := protocol.TextFrame{Text: t.text.String()}
	t.text.Reset()
	return t.server.writeFrame(t.conn, frame)
}
