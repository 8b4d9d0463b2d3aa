package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
)

// DecodeError reports a frame that could not be decoded. It is never fatal to the stream.
type DecodeError struct {
	Line  int
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseFrame decodes one structured frame and checks it is a known variant.
func ParseFrame(line []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return domain.Event{}, err
	}
	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Decoder applies the events of a chunked stream in arrival order.
type Decoder struct {
	r       io.Reader
	bufSize int
	logger  *slog.Logger
	onError func(*DecodeError)
}

// DecoderOption configures the Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger logs skipped frames.
func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// OnDecodeError registers a callback for skipped frames.
func OnDecodeError(fn func(*DecodeError)) DecoderOption {
	return func(d *Decoder) {
		d.onError = fn
	}
}

// WithReadSize sets the size of each read from the underlying stream.
func WithReadSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.bufSize = n
		}
	}
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:       r,
		bufSize: 4096,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads until EOF, calling apply for every valid frame. Malformed frames
// are reported and skipped. An error from apply stops decoding and is returned
// as is; read errors other than io.EOF are returned wrapped.
func (d *Decoder) Decode(apply func(domain.Event) error) error {
	var (
		framer Framer
		line   int
	)
	handle := func(frame []byte) error {
		line++
		ev, err := ParseFrame(frame)
		if err != nil {
			de := &DecodeError{Line: line, Frame: frame, Err: err}
			d.logger.Warn("Skipping malformed frame", "line", line, "err", err)
			if d.onError != nil {
				d.onError(de)
			}
			return nil
		}
		return apply(ev)
	}

	buf := make([]byte, d.bufSize)
	for {
		n, readErr := d.r.Read(buf)
		if n > 0 {
			for _, frame := range framer.Push(buf[:n]) {
				if err := handle(frame); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if tail := framer.Flush(); tail != nil {
				if err := handle(tail); err != nil {
					return err
				}
			}
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}
