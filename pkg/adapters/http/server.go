// Package http serves the orchestrator over HTTP: the chunked NDJSON turn
// endpoint, attachment uploads, the socket binding and the graph.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/internal/sanitize"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Engine defines what the handlers need from the orchestrator.
type Engine interface {
	Turn(ctx context.Context, req caregraph.TurnRequest, emit caregraph.Emitter) (caregraph.TurnResult, error)
	Topology() *domain.Topology
}

// maxBodySize bounds a chat request body; the message itself is bounded by the sanitizer.
const maxBodySize = 1 << 20

// Server holds the handler dependencies.
type Server struct {
	engine      Engine
	attachments ports.AttachmentStore
	logger      *slog.Logger
	maxInput    int
	origins     []string
	metrics     http.Handler

	spec       *openapi3.T
	chatSchema *openapi3.Schema
	upgrader   websocket.Upgrader
}

// Option configures the Server.
type Option func(*Server)

// WithAttachmentStore enables POST /api/upload.
func WithAttachmentStore(store ports.AttachmentStore) Option {
	return func(s *Server) {
		s.attachments = store
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize bounds a chat message in bytes.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithAllowedOrigins restricts CORS and socket origins. "*" (the default) allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	chatSchema, err := schemaOf(doc, "ChatRequest")
	if err != nil {
		return nil, err
	}

	s := &Server{
		engine:     engine,
		logger:     logging.NewNop(),
		maxInput:   sanitize.DefaultMaxInputSize,
		origins:    []string{"*"},
		spec:       doc,
		chatSchema: chatSchema,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(s.cors)

	r.Post("/api/chat", s.Chat)
	r.Post("/api/upload", s.Upload)
	r.Get("/ws/chat", s.ChatSocket)
	r.Get("/graph", s.GetGraph)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r, nil
}

func (s *Server) allowOrigin(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.origins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.allowOrigin(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.allowOrigin(origin)
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>caregraph API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetGraph handles GET /graph with the topology the engine enforces.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.engine.Topology())
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"status":       "ok",
		"graph_loaded": s.engine.Topology() != nil,
	})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":         "caregraph-http",
		"version":     strings.TrimSpace(caregraph.Version),
		"api_version": apiVersion,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}
