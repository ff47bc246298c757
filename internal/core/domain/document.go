package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentRecord is the authoritative record for one source location.
// Versions are referenced by id only; the record never holds version values.
type DocumentRecord struct {
	// ID is the opaque, stable identifier for the document.
	ID string

	// OwnerID is the tenant that owns the document.
	OwnerID string

	// SourceLocation is the unique object store location (scheme://bucket/object).
	SourceLocation string

	// Title is the human-readable title, usually the first markdown heading.
	Title string

	// DishName is the file stem of the object name.
	DishName string

	// CreatedAt is when the location was first seen.
	CreatedAt time.Time

	// VersionIDs lists version ids in insertion (chronological) order.
	VersionIDs []string
}

// DocumentVersion is one observed content revision of a document.
type DocumentVersion struct {
	// ID is the opaque version identifier.
	ID string

	// DocumentID links to the owning DocumentRecord.
	DocumentID string

	// ContentHash is the hex SHA-256 digest of the normalised content.
	ContentHash string

	// VersionNumber increases by one per content change, starting at 1.
	VersionNumber int

	// Active is true for exactly one version per document.
	Active bool

	// CreatedAt is when the version was committed.
	CreatedAt time.Time

	// FragmentBlob is the persisted list of vector index ids produced from
	// this version. Cleared on inactive versions once their deletion is confirmed.
	FragmentBlob string
}

// FragmentIDs decodes the version's fragment id blob.
func (v *DocumentVersion) FragmentIDs() ([]string, error) {
	return DecodeFragmentIDs(v.FragmentBlob)
}

// SetFragmentIDs replaces the version's fragment id blob.
func (v *DocumentVersion) SetFragmentIDs(ids []string) {
	v.FragmentBlob = EncodeFragmentIDs(ids)
}

// EncodeFragmentIDs serialises fragment ids into the persisted blob format.
func EncodeFragmentIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	data, err := json.Marshal(ids)
	if err != nil {
		// A []string always marshals.
		return ""
	}
	return string(data)
}

// DecodeFragmentIDs parses a persisted fragment id blob.
// An absent or empty blob yields no ids. A malformed blob yields ErrCorruptMetadata.
func DecodeFragmentIDs(blob string) ([]string, error) {
	if blob == "" || blob == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(blob), &ids); err != nil {
		return nil, fmt.Errorf("%w: fragment ids: %w", ErrCorruptMetadata, err)
	}
	return ids, nil
}

// OutcomeKind describes what a reconcile did.
type OutcomeKind string

const (
	// OutcomeUnchanged means the active version already has this content.
	OutcomeUnchanged OutcomeKind = "unchanged"

	// OutcomeCreated means a new document was recorded at version 1.
	OutcomeCreated OutcomeKind = "created"

	// OutcomeUpdated means a new version superseded the previous active one.
	OutcomeUpdated OutcomeKind = "updated"
)

// ReconcileOutcome is the result of reconciling one observed document.
type ReconcileOutcome struct {
	Kind OutcomeKind

	// Record is the document record after the reconcile.
	Record *DocumentRecord

	// Previous is the version that was deactivated (updated only).
	Previous *DocumentVersion

	// Current is the active version after the reconcile.
	Current *DocumentVersion

	// Fragments are the fragments produced for Current (created/updated only).
	Fragments []Fragment

	// OrphanedFragmentIDs must be purged from the vector index.
	OrphanedFragmentIDs []string

	// RetiredVersionIDs are the inactive versions whose fragment ids were
	// gathered into OrphanedFragmentIDs.
	RetiredVersionIDs []string
}
