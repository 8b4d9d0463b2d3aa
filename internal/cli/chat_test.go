package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/internal/presentation/tui"
	"github.com/aretw0/caregraph/pkg/adapters/file"
	api "github.com/aretw0/caregraph/pkg/adapters/http"
	"github.com/aretw0/caregraph/pkg/client"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalChat(t *testing.T) (*ChatSession, *file.AttachmentStore) {
	t.Helper()
	rt, err := BuildEngine(testConfig(), logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	store, err := file.NewAttachmentStore(t.TempDir(), 1)
	require.NoError(t, err)
	return NewLocalChat(rt.Engine, store, "", logging.NewNop()), store
}

func TestLocalChat_Run(t *testing.T) {
	chat, _ := newLocalChat(t)
	var out bytes.Buffer
	p := tui.NewPrinter(&out, domain.DefaultTopology(), false)

	in := strings.NewReader("I have a fever\n\n/thread\n/graph\n/exit\nnever sent\n")
	require.NoError(t, chat.Run(context.Background(), in, &out, p, logging.NewNop()))

	got := out.String()
	assert.Contains(t, got, " Triage Agent  ->  Clinical Agent ")
	assert.Contains(t, got, " Clinical Agent \n")
	assert.Contains(t, got, chat.Reconciler().ThreadID())
	assert.Contains(t, got, "class Clinical current")

	transcript := chat.Reconciler().Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "I have a fever", transcript[0].Content)
	assert.NotEmpty(t, transcript[1].Content)
}

func TestLocalChat_Attachment(t *testing.T) {
	chat, store := newLocalChat(t)
	p := tui.NewPrinter(&bytes.Buffer{}, domain.DefaultTopology(), false)

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	require.NoError(t, chat.Send(context.Background(), p, "about this invoice", path))

	transcript := chat.Reconciler().Transcript()
	require.NotEmpty(t, transcript)
	assert.True(t, strings.HasPrefix(transcript[0].Attachment, store.Dir()))
	assert.Equal(t, domain.Billing, chat.Reconciler().Active())

	err := chat.Send(context.Background(), p, "again", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalChat_NoAttachmentStore(t *testing.T) {
	rt, err := BuildEngine(testConfig(), logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	chat := NewLocalChat(rt.Engine, nil, "", logging.NewNop())

	err = chat.Send(context.Background(), tui.NewPrinter(&bytes.Buffer{}, rt.Engine.Topology(), false), "hi", "x.pdf")
	assert.ErrorIs(t, err, ErrAttachmentUnsupported)
	assert.Empty(t, chat.Reconciler().Transcript())
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	rt, err := BuildEngine(testConfig(), logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	handler, err := api.NewHandler(rt.Engine)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteChat(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	chat, err := NewRemoteChat(ctx, srv.URL, "", logging.NewNop())
	require.NoError(t, err)
	defer chat.Close()

	var out bytes.Buffer
	p := tui.NewPrinter(&out, domain.DefaultTopology(), false)
	require.NoError(t, chat.Send(ctx, p, "I have a fever", ""))
	require.NoError(t, chat.Send(ctx, p, "can I book an appointment?", ""))

	assert.NotEmpty(t, chat.Reconciler().ThreadID())
	assert.Equal(t, domain.Scheduling, chat.Reconciler().Active())
	assert.Contains(t, out.String(), " Clinical Agent  ->  Scheduling Agent ")
}

func TestSocketChat(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	chat, err := NewSocketChat(ctx, srv.URL, logging.NewNop())
	require.NoError(t, err)
	defer chat.Close()

	p := tui.NewPrinter(&bytes.Buffer{}, domain.DefaultTopology(), false)
	require.NoError(t, chat.Send(ctx, p, "I have a fever", ""))
	assert.Equal(t, domain.Clinical, chat.Reconciler().Active())

	last, ok := chat.Reconciler().Last()
	require.True(t, ok)
	assert.Equal(t, domain.RoleResponder, last.Role)
	assert.NotEmpty(t, last.Content)

	assert.ErrorIs(t, chat.Send(ctx, p, "see file", "scan.png"), ErrAttachmentUnsupported)
}

// startSocketOverride serves the real API but answers the socket with answer.
func startSocketOverride(t *testing.T, answer func(conn *websocket.Conn, text string)) *httptest.Server {
	t.Helper()
	rt, err := BuildEngine(testConfig(), logging.NewNop(), BuildOptions{})
	require.NoError(t, err)
	handler, err := api.NewHandler(rt.Engine)
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.HandleFunc("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame protocol.ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			answer(conn, frame.Content)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSocketChat_ErrorAfterPartialReply(t *testing.T) {
	srv := startSocketOverride(t, func(conn *websocket.Conn, text string) {
		if text == "first" {
			_ = conn.WriteJSON(protocol.TextFrame{Text: "partial"})
			_ = conn.WriteJSON(domain.ErrorEvent("boom"))
			return
		}
		_ = conn.WriteJSON(protocol.TextFrame{Text: "second reply"})
	})
	ctx := context.Background()

	chat, err := NewSocketChat(ctx, srv.URL, logging.NewNop())
	require.NoError(t, err)
	defer chat.Close()

	var out bytes.Buffer
	p := tui.NewPrinter(&out, domain.DefaultTopology(), false)
	require.NoError(t, chat.Send(ctx, p, "first", ""))
	require.Eventually(t, func() bool {
		last, ok := chat.Reconciler().Last()
		return ok && last.Failed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, chat.Send(ctx, p, "second", ""))
	got := out.String()
	assert.Contains(t, got, "partial")
	assert.Contains(t, got, "Error: boom")
	assert.Contains(t, got, "second reply")
	assert.Less(t, strings.Index(got, "Error: boom"), strings.Index(got, "second reply"))
}

func TestSocketChat_DropBeforeContent(t *testing.T) {
	srv := startSocketOverride(t, func(conn *websocket.Conn, text string) {
		_ = conn.WriteJSON(domain.AgentEvent(domain.Clinical))
		_ = conn.UnderlyingConn().Close()
	})
	ctx := context.Background()

	chat, err := NewSocketChat(ctx, srv.URL, logging.NewNop())
	require.NoError(t, err)
	defer chat.Close()

	var out bytes.Buffer
	p := tui.NewPrinter(&out, domain.DefaultTopology(), false)
	assert.ErrorIs(t, chat.Send(ctx, p, "knee pain", ""), client.ErrTransport)

	last, ok := chat.Reconciler().Last()
	require.True(t, ok)
	assert.True(t, last.Failed)
	assert.Contains(t, out.String(), client.FailureText)
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws/chat"},
		{in: "https://care.example.com/api/", want: "wss://care.example.com/api/ws/chat"},
		{in: "ws://host", want: "ws://host/ws/chat"},
		{in: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SocketURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
