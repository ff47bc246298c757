package services

import (
	"context"
	"fmt"
	"io"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService exposes document records and their version history.
type DocumentService struct {
	docStore driven.DocumentStore
	objects  driven.ObjectStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore, objects driven.ObjectStore) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		objects:  objects,
	}
}

// List returns an owner's documents. An empty owner lists all.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.DocumentRecord, error) {
	if s.docStore == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.docStore.ListDocuments(ctx, ownerID)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.DocumentRecord, error) {
	if s.docStore == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.docStore.GetDocument(ctx, documentID)
}

// Versions returns a document's versions in chronological order.
func (s *DocumentService) Versions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	if s.docStore == nil {
		return nil, domain.ErrNotImplemented
	}
	// Verify document exists
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.ListVersions(ctx, documentID)
}

// GetContent reads the document's current content from the object store.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if s.docStore == nil || s.objects == nil {
		return "", domain.ErrNotImplemented
	}

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	loc, err := domain.ParseLocation(doc.SourceLocation)
	if err != nil {
		return "", err
	}
	if loc.Scheme != s.objects.Scheme() {
		return "", fmt.Errorf("%w: no object store for scheme %q", domain.ErrInvalidInput, loc.Scheme)
	}

	rc, err := s.objects.Get(ctx, loc.Bucket, loc.Object)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxParentBytes))
	if err != nil {
		return "", domain.Dependency("reading content", err)
	}
	return string(data), nil
}
