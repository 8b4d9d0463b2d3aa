package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/caregraph/pkg/domain"
)

// nopStore accepts everything and stores nothing.
type nopStore struct{}

func (nopStore) Save(ctx context.Context, threadID string, thread *domain.Thread) error {
	return nil
}
func (nopStore) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	return nil, domain.ErrThreadNotFound
}
func (nopStore) Delete(ctx context.Context, threadID string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)        { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("thread-%d", i)
		_ = mgr.Save(ctx, &domain.Thread{ID: id})
		_ = mgr.Delete(ctx, id)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
