package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sous/internal/core/domain"
)

func TestDocumentService(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, "alice", "tomato.md", []byte(tomatoSoup))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "alice", "tomato.md", []byte(tomatoSoup+"\nv2"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "bob", "flan.md", []byte("# Flan"))
	require.NoError(t, err)

	svc := NewDocumentService(f.docs, f.objects)

	docs, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Tomato Soup", docs[0].Title)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	doc, err := svc.Get(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, loc("alice/tomato.md"), doc.SourceLocation)

	versions, err := svc.Versions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.True(t, versions[1].Active)

	content, err := svc.GetContent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, tomatoSoup+"\nv2", content)
}

func TestDocumentService_NotFound(t *testing.T) {
	svc := NewDocumentService(memory.NewDocumentStore(), memory.NewObjectStore("minio", testBucket))
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Versions(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_NoStore(t *testing.T) {
	svc := NewDocumentService(nil, nil)
	_, err := svc.List(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}
