package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
)

// MockStore is a minimal in-memory ThreadStore used to exercise the contract suite itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]*domain.Thread
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]*domain.Thread)}
}

func (m *MockStore) Save(ctx context.Context, threadID string, thread *domain.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[threadID] = thread.Snapshot()
	return nil
}

func (m *MockStore) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.data[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return thread.Snapshot(), nil
}

func (m *MockStore) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, threadID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestThreadStore_Contract(t *testing.T) {
	ports.RunThreadStoreContract(t, NewMockStore())
}
