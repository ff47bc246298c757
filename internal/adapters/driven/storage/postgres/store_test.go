package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// setupStore connects to SOUS_TEST_POSTGRES_DSN or skips.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SOUS_TEST_POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.Init(ctx))
	return s
}

func TestIntegration_CommitVersion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	docID := uuid.New().String()
	source := "minio://recipes/alice/" + docID + ".md"
	rec := &domain.DocumentRecord{ID: docID, OwnerID: "alice", SourceLocation: source, CreatedAt: time.Now()}
	v1 := &domain.DocumentVersion{ID: uuid.New().String(), ContentHash: "h1", VersionNumber: 1, Active: true, CreatedAt: time.Now()}
	v1.SetFragmentIDs([]string{"f1"})
	t.Cleanup(func() { _ = s.DeleteDocument(ctx, docID) })

	require.NoError(t, s.CommitVersion(ctx, driven.VersionCommit{Record: rec, CreateRecord: true, Version: v1}))

	v2 := &domain.DocumentVersion{ID: uuid.New().String(), ContentHash: "h2", VersionNumber: 2, Active: true, CreatedAt: time.Now()}
	require.NoError(t, s.CommitVersion(ctx, driven.VersionCommit{Record: rec, DeactivateVersionID: v1.ID, Version: v2}))

	// Stale deactivation loses.
	v3 := &domain.DocumentVersion{ID: uuid.New().String(), ContentHash: "h3", VersionNumber: 3, Active: true, CreatedAt: time.Now()}
	err := s.CommitVersion(ctx, driven.VersionCommit{Record: rec, DeactivateVersionID: v1.ID, Version: v3})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetBySource(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, []string{v1.ID, v2.ID}, got.VersionIDs)

	active, err := s.ActiveVersion(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	require.NoError(t, s.ClearFragmentIDs(ctx, []string{v1.ID}))
	versions, err := s.ListVersions(ctx, docID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Empty(t, versions[0].FragmentBlob)

	require.NoError(t, s.DeleteDocument(ctx, docID))
	_, err = s.GetDocument(ctx, docID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
