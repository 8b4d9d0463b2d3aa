package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
)

// Mask replaces every redacted span.
const Mask = "***"

// DefaultPIIPatterns match e-mail addresses, US social security numbers,
// card-like digit runs and phone numbers.
var DefaultPIIPatterns = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\b\d{3}-\d{2}-\d{4}\b`,
	`\b(?:\d[ -]?){13,16}\b`,
	`\(?\d{3}\)?[ .\-]\d{3}[ .\-]\d{4}\b`,
}

type piiMiddleware struct {
	next     ports.ThreadStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks turn content matching the patterns
// before it reaches the store. The in-memory thread is left untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ThreadStore) ports.ThreadStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, threadID string, thread *domain.Thread) error {
	cloned := *thread
	cloned.History = slices.Clone(thread.History)
	for i := range cloned.History {
		cloned.History[i].Content = m.mask(cloned.History[i].Content)
	}
	return m.next.Save(ctx, threadID, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	return m.next.Load(ctx, threadID)
}

func (m *piiMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
