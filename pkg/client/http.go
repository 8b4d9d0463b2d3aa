package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ChatRequest is the body of a chunked turn.
// A nil ThreadID starts a new thread.
type ChatRequest struct {
	Message   string   `json:"message"`
	ThreadID  *string  `json:"thread_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// UploadResponse is returned by the attachment endpoint.
type UploadResponse struct {
	FilePath string `json:"file_path"`
}

// HTTPBinding talks to the chunked turn, upload and graph endpoints.
type HTTPBinding struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPOption configures the HTTPBinding.
type HTTPOption func(*HTTPBinding)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBinding) {
		b.client = c
	}
}

// WithHTTPLogger sets the logger used for skipped frames.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(b *HTTPBinding) {
		b.logger = logger
	}
}

// NewHTTPBinding returns a binding for the server at baseURL.
func NewHTTPBinding(baseURL string, opts ...HTTPOption) *HTTPBinding {
	b := &HTTPBinding{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Chat submits one turn and applies its events in arrival order.
// Any non-2xx status is a terminal transport error; malformed frames are skipped.
func (b *HTTPBinding) Chat(ctx context.Context, req ChatRequest, apply func(domain.Event)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", protocol.ContentType)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	dec := protocol.NewDecoder(resp.Body, protocol.WithDecoderLogger(b.logger))
	if err := dec.Decode(func(ev domain.Event) error {
		apply(ev)
		return nil
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Upload stores an attachment and returns its opaque reference.
func (b *HTTPBinding) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("%w: failed to read attachment: %v", ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/upload", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrUpload, err)
	}
	if out.FilePath == "" {
		return "", fmt.Errorf("%w: empty file path", ErrUpload)
	}
	return out.FilePath, nil
}

// Graph fetches the topology served by the orchestrator.
func (b *HTTPBinding) Graph(ctx context.Context) (*domain.Topology, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/graph", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var topo domain.Topology
	if err := json.NewDecoder(resp.Body).Decode(&topo); err != nil {
		return nil, fmt.Errorf("%w: invalid graph: %v", ErrTransport, err)
	}
	return &topo, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
