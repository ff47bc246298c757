package sqlite

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "sous-test-*")
	require.NoError(t, err)

	// Create store in temp directory
	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func testRecord(id, owner, source string) *domain.DocumentRecord {
	return &domain.DocumentRecord{
		ID:             id,
		OwnerID:        owner,
		SourceLocation: source,
		Title:          "Title " + id,
		DishName:       "dish",
		CreatedAt:      time.Now().UTC(),
	}
}

func testVersion(id, docID string, n int, fragmentIDs ...string) *domain.DocumentVersion {
	v := &domain.DocumentVersion{
		ID:            id,
		DocumentID:    docID,
		ContentHash:   fmt.Sprintf("hash-%d", n),
		VersionNumber: n,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	v.SetFragmentIDs(fragmentIDs)
	return v
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, store.Path())
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	store1, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store1.DocumentStore().CommitVersion(ctx, driven.VersionCommit{
		Record:       testRecord("doc-1", "alice", "minio://r/alice/a.md"),
		CreateRecord: true,
		Version:      testVersion("v1", "doc-1", 1, "f1"),
	}))
	require.NoError(t, store1.Close())

	store2, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store2.Close()

	var count int
	require.NoError(t, store2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count, "migrations must not run twice")

	rec, err := store2.DocumentStore().GetBySource(ctx, "minio://r/alice/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, rec.VersionIDs)
}

func TestDocumentStore_CommitAndRead(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	rec := testRecord("doc-1", "alice", "minio://r/alice/soup/tomato.md")
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, CreateRecord: true, Version: testVersion("v1", "doc-1", 1, "f1", "f2"),
	}))

	rec.Title = "Updated"
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, DeactivateVersionID: "v1", Version: testVersion("v2", "doc-1", 2, "f3"),
	}))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, []string{"v1", "v2"}, got.VersionIDs)

	versions, err := docs.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].Active)
	assert.True(t, versions[1].Active)
	ids, err := versions[0].FragmentIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids)

	active, err := docs.ActiveVersion(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", active.ID)
	assert.Equal(t, "hash-2", active.ContentHash)
}

func TestDocumentStore_GuardedDeactivation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	rec := testRecord("doc-1", "alice", "minio://r/alice/a.md")
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, CreateRecord: true, Version: testVersion("v1", "doc-1", 1),
	}))
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, DeactivateVersionID: "v1", Version: testVersion("v2", "doc-1", 2),
	}))

	// A second writer that still believes v1 is active loses.
	err := docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, DeactivateVersionID: "v1", Version: testVersion("v3", "doc-1", 3),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Inserting a second active version is rejected by the index.
	err = docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, Version: testVersion("v3", "doc-1", 3),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	versions, err := docs.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestDocumentStore_DuplicateSource(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: testRecord("doc-1", "alice", "minio://r/alice/a.md"), CreateRecord: true,
		Version: testVersion("v1", "doc-1", 1),
	}))
	err := docs.CommitVersion(ctx, driven.VersionCommit{
		Record: testRecord("doc-2", "alice", "minio://r/alice/a.md"), CreateRecord: true,
		Version: testVersion("v9", "doc-2", 1),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = docs.GetDocument(ctx, "doc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	for i, owner := range []string{"alice", "bob", "alice"} {
		id := fmt.Sprintf("doc-%d", i)
		require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
			Record:       testRecord(id, owner, fmt.Sprintf("minio://r/%s/%d.md", owner, i)),
			CreateRecord: true,
			Version:      testVersion("v-"+id, id, 1),
		}))
	}

	alice, err := docs.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "minio://r/alice/0.md", alice[0].SourceLocation)
	assert.Equal(t, []string{"v-doc-0"}, alice[0].VersionIDs)

	all, err := docs.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDocumentStore_ClearFragmentIDs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	rec := testRecord("doc-1", "alice", "minio://r/alice/a.md")
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, CreateRecord: true, Version: testVersion("v1", "doc-1", 1, "f1"),
	}))
	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, DeactivateVersionID: "v1", Version: testVersion("v2", "doc-1", 2, "f2"),
	}))

	require.NoError(t, docs.ClearFragmentIDs(ctx, []string{"v1", "v2"}))

	versions, err := docs.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, versions[0].FragmentBlob)
	assert.NotEmpty(t, versions[1].FragmentBlob)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.CommitVersion(ctx, driven.VersionCommit{
		Record: testRecord("doc-1", "alice", "minio://r/alice/a.md"), CreateRecord: true,
		Version: testVersion("v1", "doc-1", 1),
	}))
	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetBySource(ctx, "minio://r/alice/a.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.ListVersions(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.ActiveVersion(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, docs.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}
