package file_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.AttachmentStore = (*file.AttachmentStore)(nil)

func TestAttachmentStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := file.NewAttachmentStore(dir, 1)
	require.NoError(t, err)
	ctx := context.Background()

	ref1, err := store.Put(ctx, "report.pdf", strings.NewReader("first"))
	require.NoError(t, err)
	ref2, err := store.Put(ctx, "report.pdf", strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2, "same filename must not collide")
	assert.Equal(t, dir, filepath.Dir(ref1))
	assert.True(t, strings.HasSuffix(ref1, "_report.pdf"))

	data, err := os.ReadFile(ref2)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAttachmentStore_StripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := file.NewAttachmentStore(dir, 1)
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), "../../lab results.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(ref))
	assert.True(t, strings.HasSuffix(ref, "_lab_results.png"))
}

func TestAttachmentStore_Limits(t *testing.T) {
	store, err := file.NewAttachmentStore(t.TempDir(), 1, file.WithMaxUploadSize(4))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, file.ErrEmptyUpload)

	_, err = store.Put(ctx, "big.txt", strings.NewReader("12345"))
	assert.Error(t, err)

	_, err = store.Put(ctx, "ok.txt", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestAttachmentStore_InvalidNode(t *testing.T) {
	_, err := file.NewAttachmentStore(t.TempDir(), 5000)
	assert.Error(t, err)
}
