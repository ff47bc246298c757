package driving

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// DocumentService exposes the version history for inspection.
type DocumentService interface {
	// List returns an owner's documents. An empty owner lists all.
	List(ctx context.Context, ownerID string) ([]domain.DocumentRecord, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.DocumentRecord, error)

	// Versions returns a document's versions in chronological order.
	Versions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)

	// GetContent reads the document's current content from the object store.
	GetContent(ctx context.Context, documentID string) (string, error)
}
