package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/caregraph/pkg/domain"
)

// Prune deletes every thread idle for at least idle. Threads with a turn in
// flight are skipped until their lock is released.
func (m *Manager) Prune(ctx context.Context, idle time.Duration) (int, error) {
	if idle <= 0 {
		return 0, nil
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list threads: %w", err)
	}

	pruned := 0
	for _, id := range ids {
		err := m.WithLock(ctx, id, func(ctx context.Context) error {
			thread, err := m.store.Load(ctx, id)
			if errors.Is(err, domain.ErrThreadNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !thread.Idle(m.now(), idle) {
				return nil
			}
			if err := m.store.Delete(ctx, id); err != nil {
				return err
			}
			pruned++
			return nil
		})
		if err != nil {
			return pruned, fmt.Errorf("failed to prune thread %s: %w", id, err)
		}
	}
	return pruned, nil
}

// RunJanitor prunes idle threads every interval until ctx is canceled.
func (m *Manager) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Prune(ctx, idle)
			if err != nil {
				m.logger.Warn("Idle thread eviction failed", "err", err)
				continue
			}
			if n > 0 {
				m.logger.Info("Evicted idle threads", "count", n, "idle", idle)
			}
		}
	}
}
