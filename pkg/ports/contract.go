package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunThreadStoreContract runs a suite of tests to verify that a ThreadStore
// implementation adheres to the interface contract.
func RunThreadStoreContract(t *testing.T, store ThreadStore) {
	ctx := context.Background()
	threadID := "contract-thread-" + time.Now().Format("20060102150405")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Save and Load", func(t *testing.T) {
		thread := domain.NewThread(threadID, domain.Triage, now)
		thread.Active = domain.Clinical
		thread.Append(domain.Turn{Role: domain.RoleUser, Content: "my knee hurts", Timestamp: now})
		thread.Append(domain.Turn{
			Role:      domain.RoleResponder,
			Content:   "Let's look at that knee.",
			Responder: domain.Clinical,
			Timestamp: now,
		})

		require.NoError(t, store.Save(ctx, threadID, thread), "Save should not return error")

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, threadID, loaded.ID)
		assert.Equal(t, domain.Clinical, loaded.Active)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "my knee hurts", loaded.History[0].Content)
		assert.Equal(t, domain.Clinical, loaded.History[1].Responder)
	})

	t.Run("Load Returns Isolated Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err)
		loaded.History = append(loaded.History, domain.Turn{Role: domain.RoleUser, Content: "mutated"})
		loaded.Active = domain.Billing

		again, err := store.Load(ctx, threadID)
		require.NoError(t, err)
		assert.Len(t, again.History, 2)
		assert.Equal(t, domain.Clinical, again.Active)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, threadID, domain.NewThread(threadID, domain.Triage, now)))

		require.NoError(t, store.Delete(ctx, threadID), "Delete should not return error")

		_, err := store.Load(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound, "Load after Delete should return ErrThreadNotFound")

		assert.NoError(t, store.Delete(ctx, threadID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewThread(id1, domain.Triage, now)))
		require.NoError(t, store.Save(ctx, id2, domain.NewThread(id2, domain.Triage, now)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		threads, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})
}
