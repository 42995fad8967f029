package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_SetAndGet(t *testing.T) {
	store := NewKVStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "github_user:alice", `{"login":"alice"}`))

	val, ok, err := store.Get(ctx, "github_user:alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"login":"alice"}`, val)
}

func TestKVStore_GetMissing(t *testing.T) {
	store := NewKVStore(setupTestDB(t))

	val, ok, err := store.Get(context.Background(), "github_user:nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", val)
}

func TestKVStore_SetOverwrites(t *testing.T) {
	store := NewKVStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "old-value"))
	require.NoError(t, store.Set(ctx, "k", "new-value"))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new-value", val)
}

func TestKVStore_Delete(t *testing.T) {
	store := NewKVStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "k"), "deleting a missing key should not error")
}
