package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed thread lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns thread lifecycle and serializes turns on the same thread.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ThreadStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger

	initial domain.Responder
	newID   func() string
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithInitialResponder sets the responder that owns new threads (default: Triage).
func WithInitialResponder(r domain.Responder) Option {
	return func(m *Manager) {
		m.initial = r
	}
}

// WithIDGenerator replaces the UUID generator for new thread IDs.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new session Manager on top of a thread store.
func NewManager(store ports.ThreadStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		initial: domain.Triage,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(threadID) after unlocking.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

// WithLock executes a function while holding the lock for the thread.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	entry := m.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(threadID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, threadID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// TurnFunc runs while the thread is locked. It may mutate the thread freely.
type TurnFunc func(ctx context.Context, thread *domain.Thread, isNew bool) error

// WithThread resolves a thread and runs fn while holding its lock.
//
// An empty or unknown threadID yields a new thread with a fresh ID, persisted
// before fn runs so the ID is reserved. The thread is saved again after fn
// returns, whatever its outcome: partial effects of a turn are never rolled back.
func (m *Manager) WithThread(ctx context.Context, threadID string, fn TurnFunc) error {
	fresh := threadID == ""
	if !fresh {
		_, err := m.store.Load(ctx, threadID)
		switch {
		case errors.Is(err, domain.ErrThreadNotFound):
			m.logger.InfoContext(ctx, "Unknown thread, allocating a new one", "requested_id", threadID)
			fresh = true
		case err != nil:
			return fmt.Errorf("failed to check thread existence: %w", err)
		}
	}

	id := threadID
	if fresh {
		id = m.newID()
	}

	return m.WithLock(ctx, id, func(ctx context.Context) error {
		var thread *domain.Thread
		if fresh {
			thread = domain.NewThread(id, m.initial, m.now())
			if err := m.store.Save(ctx, id, thread); err != nil {
				return fmt.Errorf("failed to initialize thread: %w", err)
			}
		} else {
			var err error
			thread, err = m.store.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load thread: %w", err)
			}
		}

		fnErr := fn(ctx, thread, fresh)

		if err := m.store.Save(context.WithoutCancel(ctx), id, thread); err != nil {
			return errors.Join(fnErr, fmt.Errorf("failed to save thread: %w", err))
		}
		return fnErr
	})
}

// Resolve returns the thread for threadID, creating it when the ID is empty or unknown.
// isNew tells the caller a thread_id must be announced.
func (m *Manager) Resolve(ctx context.Context, threadID string) (*domain.Thread, bool, error) {
	var (
		thread *domain.Thread
		isNew  bool
	)
	err := m.WithThread(ctx, threadID, func(_ context.Context, t *domain.Thread, n bool) error {
		thread = t.Snapshot()
		isNew = n
		return nil
	})
	return thread, isNew, err
}

// Load retrieves an existing thread from the store.
func (m *Manager) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	var thread *domain.Thread
	err := m.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		thread, err = m.store.Load(ctx, threadID)
		return err
	})
	return thread, err
}

// Save persists the thread.
func (m *Manager) Save(ctx context.Context, thread *domain.Thread) error {
	return m.WithLock(ctx, thread.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, thread.ID, thread)
	})
}

// Delete removes the thread from the store.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	return m.WithLock(ctx, threadID, func(ctx context.Context) error {
		return m.store.Delete(ctx, threadID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying thread store.
func (m *Manager) Store() ports.ThreadStore {
	return m.store
}
