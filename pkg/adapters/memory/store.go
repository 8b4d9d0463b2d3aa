package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/jinzhu/copier"
)

// Store implements ports.ThreadStore in memory.
// Safe for concurrent use.
type Store struct {
	data    map[string]*domain.Thread
	expires map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// Option configures the Store.
type Option func(*Store)

// WithTTL expires threads ttl after their last Save, like a Redis key TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data:    make(map[string]*domain.Thread),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a deep copy of the thread.
func (s *Store) Save(ctx context.Context, threadID string, thread *domain.Thread) error {
	copied, err := clone(thread)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = copied
	if s.ttl > 0 {
		s.expires[threadID] = s.now().Add(s.ttl)
	}
	return nil
}

// Load returns a copy so callers can't mutate stored state through the pointer.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.data[threadID]
	if !ok || s.expiredLocked(threadID) {
		return nil, domain.ErrThreadNotFound
	}
	return clone(thread)
}

// Delete removes the thread.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	delete(s.expires, threadID)
	return nil
}

// List returns live threads, dropping expired ones on the way.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threads := make([]string, 0, len(s.data))
	for id := range s.data {
		if s.expiredLocked(id) {
			continue
		}
		threads = append(threads, id)
	}
	return threads, nil
}

// expiredLocked lazily evicts an expired thread. Callers hold s.mu.
func (s *Store) expiredLocked(threadID string) bool {
	deadline, ok := s.expires[threadID]
	if !ok || s.now().Before(deadline) {
		return false
	}
	delete(s.data, threadID)
	delete(s.expires, threadID)
	return true
}

func clone(src *domain.Thread) (*domain.Thread, error) {
	var dst domain.Thread
	if err := copier.CopyWithOption(&dst, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy thread: %w", err)
	}
	return &dst, nil
}
