package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/caregraph/pkg/domain"
)

// ContentType is the media type of the chunked event stream.
const ContentType = "application/x-ndjson"

type flusher interface {
	Flush()
}

// Encoder writes events as newline-terminated JSON frames.
// When the writer can flush (http.ResponseWriter), every frame is flushed
// so the consumer can parse it before the turn completes.
type Encoder struct {
	w   io.Writer
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{w: w, enc: enc}
}

// Encode writes one frame.
func (e *Encoder) Encode(ev domain.Event) error {
	// json.Encoder terminates every value with '\n'.
	if err := e.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", ev.Type, err)
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	return nil
}
