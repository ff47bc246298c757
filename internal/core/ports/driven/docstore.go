package driven

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// VersionCommit is one atomic write of the versioning engine.
type VersionCommit struct {
	// Record is the document record. Inserted when CreateRecord is set.
	Record *domain.DocumentRecord

	// CreateRecord is true on first sighting of the source location.
	CreateRecord bool

	// DeactivateVersionID is the version to flip inactive, if any.
	// The store fails with domain.ErrConflict if it is no longer active.
	DeactivateVersionID string

	// Version is the new active version, already carrying its fragment ids.
	Version *domain.DocumentVersion
}

// DocumentStore persists document records and their versions.
// Backed by SQLite or Postgres. It is the source of truth for what the
// vector index should contain.
type DocumentStore interface {
	// GetBySource retrieves a record by source location.
	// Returns domain.ErrNotFound if none exists.
	GetBySource(ctx context.Context, sourceLocation string) (*domain.DocumentRecord, error)

	// GetDocument retrieves a record by ID.
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// ListDocuments returns an owner's records. An empty owner lists all.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.DocumentRecord, error)

	// ListVersions returns a document's versions in chronological order.
	ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)

	// ActiveVersion returns the most recent active version of a document.
	ActiveVersion(ctx context.Context, documentID string) (*domain.DocumentVersion, error)

	// CommitVersion applies a VersionCommit in one transaction.
	CommitVersion(ctx context.Context, c VersionCommit) error

	// ClearFragmentIDs empties the fragment id blob of the given inactive versions.
	// Active versions are left untouched.
	ClearFragmentIDs(ctx context.Context, versionIDs []string) error

	// DeleteDocument removes a record and all its versions.
	DeleteDocument(ctx context.Context, id string) error
}
