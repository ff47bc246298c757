package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

const testSource = "minio://recipes/alice/soup/tomato.md"

func newRecord(id string) *domain.DocumentRecord {
	return &domain.DocumentRecord{
		ID:             id,
		OwnerID:        "alice",
		SourceLocation: testSource,
		Title:          "Tomato Soup",
		DishName:       "tomato",
		CreatedAt:      time.Now(),
	}
}

func newVersion(id, docID string, n int, ids ...string) *domain.DocumentVersion {
	v := &domain.DocumentVersion{
		ID:            id,
		DocumentID:    docID,
		ContentHash:   "hash-" + id,
		VersionNumber: n,
		Active:        true,
		CreatedAt:     time.Now(),
	}
	v.SetFragmentIDs(ids)
	return v
}

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.records)
	assert.NotNil(t, store.versions)
}

func TestDocumentStore_CommitVersion_Create(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	err := store.CommitVersion(ctx, driven.VersionCommit{
		Record:       newRecord("doc-1"),
		CreateRecord: true,
		Version:      newVersion("v1", "doc-1", 1, "f1", "f2"),
	})
	require.NoError(t, err)

	rec, err := store.GetBySource(ctx, testSource)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", rec.ID)
	assert.Equal(t, []string{"v1"}, rec.VersionIDs)

	active, err := store.ActiveVersion(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active.VersionNumber)
	ids, err := active.FragmentIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids)
}

func TestDocumentStore_CommitVersion_Update(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1, "f1"),
	}))

	rec := newRecord("doc-1")
	rec.Title = "Better Tomato Soup"
	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: rec, DeactivateVersionID: "v1", Version: newVersion("v2", "doc-1", 2, "f2"),
	}))

	versions, err := store.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].Active)
	assert.True(t, versions[1].Active)

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Better Tomato Soup", got.Title)
}

func TestDocumentStore_CommitVersion_Conflict(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1),
	}))
	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), DeactivateVersionID: "v1", Version: newVersion("v2", "doc-1", 2),
	}))

	// v1 is no longer active
	err := store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), DeactivateVersionID: "v1", Version: newVersion("v3", "doc-1", 3),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Leaving v2 active is also a conflict
	err = store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), Version: newVersion("v3", "doc-1", 3),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	versions, err := store.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestDocumentStore_CommitVersion_DuplicateCreate(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1),
	}))
	err := store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-2"), CreateRecord: true, Version: newVersion("v9", "doc-2", 1),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestDocumentStore_CommitVersion_Invalid(t *testing.T) {
	store := NewDocumentStore()
	err := store.CommitVersion(context.Background(), driven.VersionCommit{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	for i, owner := range []string{"alice", "bob", "alice"} {
		rec := &domain.DocumentRecord{
			ID:             string(rune('a'+i)) + "-doc",
			OwnerID:        owner,
			SourceLocation: "minio://recipes/" + owner + "/" + string(rune('a'+i)) + ".md",
		}
		require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
			Record: rec, CreateRecord: true, Version: newVersion("v"+rec.ID, rec.ID, 1),
		}))
	}

	alice, err := store.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	all, err := store.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDocumentStore_ClearFragmentIDs(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1, "f1"),
	}))
	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), DeactivateVersionID: "v1", Version: newVersion("v2", "doc-1", 2, "f2"),
	}))

	require.NoError(t, store.ClearFragmentIDs(ctx, []string{"v1", "v2", "missing"}))

	versions, err := store.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, versions[0].FragmentBlob)
	assert.NotEmpty(t, versions[1].FragmentBlob, "active version keeps its ids")
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1),
	}))
	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetBySource(ctx, testSource)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.ListVersions(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}

func TestDocumentStore_ReturnsCopies(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.CommitVersion(ctx, driven.VersionCommit{
		Record: newRecord("doc-1"), CreateRecord: true, Version: newVersion("v1", "doc-1", 1),
	}))
	rec, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	rec.VersionIDs[0] = "tampered"

	again, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v1", again.VersionIDs[0])
}

func TestDocumentStore_ConcurrentAccess(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			rec := &domain.DocumentRecord{ID: id, OwnerID: "alice", SourceLocation: "minio://r/alice/" + id + ".md"}
			_ = store.CommitVersion(ctx, driven.VersionCommit{
				Record: rec, CreateRecord: true, Version: newVersion("v"+id, id, 1),
			})
			_, _ = store.ListDocuments(ctx, "alice")
		}(i)
	}
	wg.Wait()

	docs, err := store.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, docs, 20)
}
