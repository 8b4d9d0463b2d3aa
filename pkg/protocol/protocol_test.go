package protocol_test

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, d *protocol.Decoder) []domain.Event {
	t.Helper()
	var events []domain.Event
	require.NoError(t, d.Decode(func(ev domain.Event) error {
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestEncoder_FramesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := protocol.NewEncoder(rec)

	require.NoError(t, enc.Encode(domain.ThreadIDEvent("t-1")))
	require.NoError(t, enc.Encode(domain.AgentEvent(domain.Clinical)))
	require.NoError(t, enc.Encode(domain.TokenEvent("<b>hi</b>")))

	assert.True(t, rec.Flushed)
	assert.Equal(t,
		`{"type":"thread_id","thread_id":"t-1"}`+"\n"+
			`{"type":"agent_event","agent":"Clinical"}`+"\n"+
			`{"type":"token","content":"<b>hi</b>"}`+"\n",
		rec.Body.String())
}

func TestFramer_PartialLines(t *testing.T) {
	var f protocol.Framer

	assert.Empty(t, f.Push([]byte(`{"type":"tok`)))
	assert.Equal(t, 12, f.Pending())

	lines := f.Push([]byte("en\",\"content\":\"a\"}\r\n\n{\"type\""))
	require.Len(t, lines, 1)
	assert.Equal(t, `{"type":"token","content":"a"}`, string(lines[0]))

	lines = f.Push([]byte(`:"message"}` + "\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, `{"type":"message"}`, string(lines[0]))

	assert.Nil(t, f.Flush())
	f.Push([]byte(`tail`))
	assert.Equal(t, "tail", string(f.Flush()))
	assert.Zero(t, f.Pending())
}

func TestDecoder_RoundTripOneByteReads(t *testing.T) {
	var buf bytes.Buffer
	enc := protocol.NewEncoder(&buf)
	want := []domain.Event{
		domain.ThreadIDEvent("t-1"),
		domain.AgentEvent(domain.Clinical),
		domain.TokenEvent("I'm sorry "),
		domain.TokenEvent("to hear that.\nLet's"),
		domain.TokenEvent(" talk."),
	}
	for _, ev := range want {
		require.NoError(t, enc.Encode(ev))
	}

	got := collect(t, protocol.NewDecoder(iotest.OneByteReader(&buf)))
	assert.Equal(t, want, got)
}

func TestDecoder_CorruptFrameIsSkipped(t *testing.T) {
	stream := `{"type":"token","content":"Hello, "}` + "\n" +
		`{"type":"token","content":` + "\n" +
		`{"type":"token","content":"world"}` + "\n"

	var skipped []*protocol.DecodeError
	d := protocol.NewDecoder(strings.NewReader(stream),
		protocol.WithReadSize(7),
		protocol.OnDecodeError(func(e *protocol.DecodeError) { skipped = append(skipped, e) }),
	)
	events := collect(t, d)

	require.Len(t, events, 2)
	assert.Equal(t, "Hello, world", events[0].Content+events[1].Content)
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Line)
}

func TestDecoder_UnknownVariantIsSkipped(t *testing.T) {
	stream := `{"type":"surprise"}` + "\n" +
		`{"type":"agent_event","agent":"Nobody"}` + "\n" +
		`{"type":"message","content":"ok"}`

	var skipped int
	events := collect(t, protocol.NewDecoder(strings.NewReader(stream),
		protocol.OnDecodeError(func(*protocol.DecodeError) { skipped++ })))

	assert.Equal(t, 2, skipped)
	assert.Equal(t, []domain.Event{domain.MessageEvent("ok")}, events, "unterminated tail is applied on close")
}

func TestDecoder_StopsOnApplyError(t *testing.T) {
	stream := `{"type":"token","content":"a"}` + "\n" + `{"type":"token","content":"b"}` + "\n"
	stop := errors.New("stop")

	calls := 0
	err := protocol.NewDecoder(strings.NewReader(stream)).Decode(func(domain.Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := iotest.DataErrReader(iotest.ErrReader(boom))

	err := protocol.NewDecoder(r).Decode(func(domain.Event) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestDecodeSocketPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.Event
	}{
		{"Structured agent event", `{"type":"agent_event","agent":"Billing"}`, domain.AgentEvent(domain.Billing)},
		{"Structured error", `{"type":"error","content":"boom"}`, domain.ErrorEvent("boom")},
		{"Text object", `{"text":"Your invoice is paid."}`, domain.MessageEvent("Your invoice is paid.")},
		{"Text array", `[{"text":"Hello "},{"text":"there"}]`, domain.MessageEvent("Hello there")},
		{"Plain text", `Hello there`, domain.MessageEvent("Hello there")},
		{"Unrecognized JSON shape", `{"foo":1}`, domain.MessageEvent(`{"foo":1}`)},
		{"Array without text", `[{"foo":1}]`, domain.MessageEvent(`[{"foo":1}]`)},
		{"Broken JSON", `{"text":`, domain.MessageEvent(`{"text":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, protocol.DecodeSocketPayload([]byte(tt.payload)))
		})
	}
}
