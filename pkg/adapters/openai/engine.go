// Package openai implements ports.ReasoningEngine on an OpenAI-compatible chat API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/invopop/jsonschema"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// ErrEmptyResponse is returned when the model produced no choice.
var ErrEmptyResponse = errors.New("model returned no choices")

// Config selects the API endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries overrides the client's retry count when non-zero.
	// A negative value disables retries.
	MaxRetries int
}

// Classification is the structured output of the routing call.
type Classification struct {
	Intent string `json:"intent" jsonschema:"enum=medical,enum=scheduling,enum=payment,enum=identity,enum=other" jsonschema_description:"Capability needed to answer the latest message"`
}

// Engine classifies with a structured output call and streams replies.
type Engine struct {
	client      sdk.Client
	model       string
	temperature float64
	schema      any
	logger      *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTemperature sets the sampling temperature of replies.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = t
	}
}

// New creates an Engine.
func New(cfg Config, opts ...Option) *Engine {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	switch {
	case cfg.MaxRetries < 0:
		reqOpts = append(reqOpts, option.WithMaxRetries(0))
	case cfg.MaxRetries > 0:
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	e := &Engine{
		client: sdk.NewClient(reqOpts...),
		model:  model,
		schema: GenerateSchema[Classification](),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.ReasoningEngine = (*Engine)(nil)

// Model returns the configured model name.
func (e *Engine) Model() string {
	return e.model
}

// GenerateSchema reflects a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Classify asks the model for the intent of the latest message.
func (e *Engine) Classify(ctx context.Context, req ports.ClassifyRequest) (domain.Intent, error) {
	messages := []sdk.ChatCompletionMessageParamUnion{sdk.SystemMessage(classifyPrompt)}
	if req.Thread != nil {
		messages = append(messages, sdk.SystemMessage("The conversation is currently handled by "+req.Thread.Active.String()+"."))
		messages = append(messages, history(req.Thread)...)
	}
	messages = append(messages, sdk.UserMessage(req.Message))

	params := sdk.ChatCompletionNewParams{
		Model:       e.model,
		Messages:    messages,
		Temperature: sdk.Float(0),
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "classification",
					Description: sdk.String("Intent of the latest patient message"),
					Schema:      e.schema,
					Strict:      sdk.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	var out Classification
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return "", fmt.Errorf("openai classify: invalid structured output: %w", err)
	}
	intent := domain.ParseIntent(out.Intent)

	e.logger.DebugContext(ctx, "Message classified",
		"model", e.model,
		"intent", intent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return intent, nil
}

// Generate streams the responder's reply.
func (e *Engine) Generate(ctx context.Context, req ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prompt, ok := Prompts[req.Responder]
		if !ok {
			yield("", fmt.Errorf("%w: %q", domain.ErrUnknownResponder, req.Responder))
			return
		}

		messages := []sdk.ChatCompletionMessageParamUnion{sdk.SystemMessage(prompt)}
		messages = append(messages, history(req.Thread)...)
		messages = append(messages, sdk.UserMessage(userContent(req)))

		params := sdk.ChatCompletionNewParams{
			Model:       e.model,
			Messages:    messages,
			Temperature: sdk.Float(e.temperature),
		}

		stream := e.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("openai stream: %w", err))
		}
	}
}

func history(thread *domain.Thread) []sdk.ChatCompletionMessageParamUnion {
	if thread == nil {
		return nil
	}
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(thread.History))
	for _, turn := range thread.History {
		switch turn.Role {
		case domain.RoleUser:
			out = append(out, sdk.UserMessage(domain.AnnotateAttachment(turn.Content, turn.Attachment)))
		case domain.RoleResponder:
			out = append(out, sdk.AssistantMessage(turn.Content))
		}
	}
	return out
}

func userContent(req ports.GenerateRequest) string {
	var sb strings.Builder
	sb.WriteString(domain.AnnotateAttachment(req.Message, req.Attachment))
	if req.Location != nil {
		fmt.Fprintf(&sb, "\n\n[Location: %.6f, %.6f]", req.Location.Latitude, req.Location.Longitude)
	}
	return sb.String()
}
