// Package mcp exposes the orchestrator as a Model Context Protocol server:
// a send_message tool running one turn, and the handoff graph.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/internal/presentation/graph"
	"github.com/aretw0/caregraph/internal/sanitize"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TurnResponse is the structured result of send_message.
type TurnResponse struct {
	ThreadID  string             `json:"thread_id" jsonschema_description:"Thread to pass back on the next message"`
	NewThread bool               `json:"new_thread" jsonschema_description:"True when this message started the thread"`
	Responder domain.Responder   `json:"responder" jsonschema_description:"Responder that answered"`
	Handoffs  []domain.Responder `json:"handoffs" jsonschema_description:"Responders entered during the turn, in order"`
	Reply     string             `json:"reply" jsonschema_description:"Full reply text"`
	Error     string             `json:"error,omitempty" jsonschema_description:"User-facing error, if the turn failed"`
}

// Engine defines what the MCP server needs from the orchestrator.
type Engine interface {
	Turn(ctx context.Context, req caregraph.TurnRequest, emit caregraph.Emitter) (caregraph.TurnResult, error)
	Topology() *domain.Topology
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	maxInput  int
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize bounds a message in bytes.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		maxInput:  sanitize.DefaultMaxInputSize,
		mcpServer: server.NewMCPServer("caregraph-mcp", strings.TrimSpace(caregraph.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: send_message
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a patient message to the front desk and get the routed reply."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The patient's message")),
		mcp.WithString("thread_id", mcp.Description("Thread returned by a previous call (omit to start a new one)")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the responder handoff graph as JSON."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.graphJSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	message, _ := args["message"].(string)
	threadID, _ := args["thread_id"].(string)

	clean, err := sanitize.Message(message, s.maxInput)
	if err != nil {
		s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(message))
		return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	var (
		resp  TurnResponse
		reply strings.Builder
	)
	emit := func(ev domain.Event) error {
		switch ev.Type {
		case domain.EventAgent:
			resp.Handoffs = append(resp.Handoffs, ev.Agent)
		case domain.EventToken, domain.EventMessage:
			reply.WriteString(ev.Content)
		case domain.EventError:
			resp.Error = ev.Content
		}
		return nil
	}

	res, err := s.engine.Turn(ctx, caregraph.TurnRequest{ThreadID: threadID, Message: clean}, emit)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}

	resp.ThreadID = res.ThreadID
	resp.NewThread = res.NewThread
	resp.Responder = res.Responder
	if resp.Handoffs == nil {
		resp.Handoffs = []domain.Responder{}
	}
	resp.Reply = reply.String()
	return resp, nil
}

func (s *Server) graphJSON() ([]byte, error) {
	data, err := json.Marshal(s.engine.Topology())
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return data, nil
}

func (s *Server) registerResources() {
	// EXPOSE: caregraph://graph
	s.mcpServer.AddResource(mcp.NewResource("caregraph://graph", "Responder Handoff Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.graphJSON()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "caregraph://graph",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})

	// EXPOSE: caregraph://graph.mmd
	s.mcpServer.AddResource(mcp.NewResource("caregraph://graph.mmd", "Responder Handoff Graph (Mermaid)",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "caregraph://graph.mmd",
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(s.engine.Topology(), nil),
			},
		}, nil
	})
}
