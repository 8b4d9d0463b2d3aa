package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/caregraph/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)(underlyingStore)
	ctx := context.Background()

	thread := threadWith("pii", "I am jane.doe@example.com, SSN 123-45-6789, call 555-123-4567")
	require.NoError(t, secureStore.Save(ctx, "pii", thread))

	assert.Contains(t, thread.History[0].Content, "jane.doe@example.com", "in-memory thread must not be modified")

	stored, err := underlyingStore.Load(ctx, "pii")
	require.NoError(t, err)
	content := stored.History[0].Content
	assert.NotContains(t, content, "jane.doe@example.com")
	assert.NotContains(t, content, "123-45-6789")
	assert.NotContains(t, content, "555-123-4567")
	assert.Contains(t, content, "I am ***")
}

func TestChain_PIIBeforeEncryption(t *testing.T) {
	underlyingStore := NewMockStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{`secret-\d+`}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "chain", threadWith("chain", "token secret-42 here")))

	stored, err := underlyingStore.Load(ctx, "chain")
	require.NoError(t, err)
	assert.Empty(t, stored.History)

	loaded, err := store.Load(ctx, "chain")
	require.NoError(t, err)
	assert.Equal(t, "token *** here", loaded.History[0].Content)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chain"}, ids)
}
