package ports

import (
	"context"

	"github.com/aretw0/caregraph/pkg/domain"
)

// ThreadStore defines the interface for persisting conversation threads.
type ThreadStore interface {
	// Save persists the thread under the given ID.
	Save(ctx context.Context, threadID string, thread *domain.Thread) error

	// Load retrieves a thread.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	Load(ctx context.Context, threadID string) (*domain.Thread, error)

	// Delete removes a thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of the stored threads.
	List(ctx context.Context) ([]string, error)
}

// StoreMiddleware wraps a ThreadStore to add behavior (encryption, redaction).
type StoreMiddleware func(ThreadStore) ThreadStore
