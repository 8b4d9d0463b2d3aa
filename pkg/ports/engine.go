package ports

import (
	"context"
	"io"
	"iter"

	"github.com/aretw0/caregraph/pkg/domain"
)

// ClassifyRequest is the input of a classification.
// Thread is a read-only view of the conversation so far.
type ClassifyRequest struct {
	Thread  *domain.Thread
	Message string
}

// Classifier assigns a capability tag from the closed intent set to a message.
// Routing policy (priority order, hub fallback) is not its concern.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (domain.Intent, error)
}

// GenerateRequest is the input of a reply generation.
type GenerateRequest struct {
	Responder  domain.Responder
	Thread     *domain.Thread
	Message    string
	Attachment string
	Location   *domain.Location
}

// Generator streams a responder's reply as content fragments.
// The sequence ends at the first non-nil error.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) iter.Seq2[string, error]
}

// ReasoningEngine is the external collaborator that both classifies and replies.
type ReasoningEngine interface {
	Classifier
	Generator
}

// AttachmentStore durably stores an uploaded file.
// The returned reference is opaque to callers.
type AttachmentStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
}
