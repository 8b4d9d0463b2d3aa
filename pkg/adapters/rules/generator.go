package rules

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
)

var replies = map[domain.Responder]string{
	domain.Triage: "Welcome! To verify your identity, please provide your email address. " +
		"I can then connect you with our clinical, scheduling or billing team.",
	domain.Clinical: "I'm sorry to hear that. I am not a doctor and cannot diagnose conditions, " +
		"but rest and monitoring usually help with mild symptoms. " +
		"If it gets worse or feels urgent, please seek medical attention right away.",
	domain.Scheduling: "I can help with that. Tell me the day and time that suits you " +
		"and I will check availability and book the appointment.",
	domain.Billing: "I can help with your billing question. " +
		"Please share the invoice number or the charge you want me to look into.",
}

// Generator streams canned replies word by word.
type Generator struct {
	// Delay is slept between fragments to mimic a streaming model.
	Delay time.Duration
}

var _ ports.Generator = Generator{}

// Reply returns the full canned reply for a request.
func Reply(req ports.GenerateRequest) string {
	var sb strings.Builder
	if req.Attachment != "" {
		fmt.Fprintf(&sb, "I received your file %s. ", req.Attachment)
	}
	sb.WriteString(replies[req.Responder])
	if req.Location != nil {
		fmt.Fprintf(&sb, " I see you are near %.4f, %.4f.", req.Location.Latitude, req.Location.Longitude)
	}
	return sb.String()
}

// Generate yields the reply in fragments that concatenate to Reply(req).
func (g Generator) Generate(ctx context.Context, req ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text := Reply(req)
		for _, fragment := range fragments(text) {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
			if g.Delay > 0 {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(g.Delay):
				}
			}
		}
	}
}

// fragments splits text after each space, keeping the spaces.
func fragments(text string) []string {
	var out []string
	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// Engine is the offline ports.ReasoningEngine.
type Engine struct {
	Classifier
	Generator
}

var _ ports.ReasoningEngine = Engine{}

// New returns an Engine streaming with the given inter-fragment delay.
func New(delay time.Duration) Engine {
	return Engine{Generator: Generator{Delay: delay}}
}
