package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements ThreadStore
var _ ports.ThreadStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunThreadStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	thread := domain.NewThread("thread-1", domain.Triage, time.Now())
	thread.Append(domain.Turn{Role: domain.RoleUser, Content: "hello", Timestamp: time.Now()})
	require.NoError(t, store.Save(ctx, "thread-1", thread))

	_, err := os.Stat(filepath.Join(dir, "thread-1.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "hello", loaded.History[0].Content)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	_, err := store.Load(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	err = store.Save(ctx, "a/b", domain.NewThread("a/b", domain.Triage, time.Now()))
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
