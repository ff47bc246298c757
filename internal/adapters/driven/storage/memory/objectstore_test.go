package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
)

func TestObjectStore_PutGetRemove(t *testing.T) {
	store := NewObjectStore("minio", "recipes")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "recipes", "alice/soup/tomato.md", strings.NewReader("# Tomato"), 8))

	rc, err := store.Get(ctx, "recipes", "alice/soup/tomato.md")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "# Tomato", string(data))

	require.NoError(t, store.Remove(ctx, "recipes", "alice/soup/tomato.md"))
	_, err = store.Get(ctx, "recipes", "alice/soup/tomato.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObjectStore_List(t *testing.T) {
	store := NewObjectStore("minio", "recipes")
	ctx := context.Background()
	for _, name := range []string{"alice/soup/tomato.md", "alice/bread.md", "bob/cake.md"} {
		require.NoError(t, store.Put(ctx, "recipes", name, strings.NewReader("x"), 1))
	}

	all, err := store.List(ctx, "recipes", "", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	top, err := store.List(ctx, "recipes", "alice/", false)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice/bread.md", top[0].Name)
	assert.Equal(t, "alice/soup/", top[1].Name)
	assert.True(t, top[1].IsDir)

	_, err = store.List(ctx, "missing", "", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObjectStore_BucketExists(t *testing.T) {
	store := NewObjectStore("minio", "recipes")
	ok, err := store.BucketExists(context.Background(), "recipes")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.BucketExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "minio", store.Scheme())
}
