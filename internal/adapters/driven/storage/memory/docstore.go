// Package memory provides in-process implementations of the storage ports.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu       sync.RWMutex
	records  map[string]domain.DocumentRecord
	bySource map[string]string
	versions map[string]domain.DocumentVersion
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		records:  make(map[string]domain.DocumentRecord),
		bySource: make(map[string]string),
		versions: make(map[string]domain.DocumentVersion),
	}
}

// GetBySource retrieves a record by source location.
func (s *DocumentStore) GetBySource(_ context.Context, sourceLocation string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySource[sourceLocation]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec := cloneRecord(s.records[id])
	return &rec, nil
}

// GetDocument retrieves a record by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

// ListDocuments returns an owner's records ordered by source location.
func (s *DocumentStore) ListDocuments(_ context.Context, ownerID string) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DocumentRecord, 0, len(s.records))
	for _, rec := range s.records {
		if ownerID == "" || rec.OwnerID == ownerID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceLocation < out[j].SourceLocation })
	return out, nil
}

// ListVersions returns a document's versions in chronological order.
func (s *DocumentStore) ListVersions(_ context.Context, documentID string) ([]domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.DocumentVersion, 0, len(rec.VersionIDs))
	for _, vid := range rec.VersionIDs {
		out = append(out, s.versions[vid])
	}
	return out, nil
}

// ActiveVersion returns the most recent active version of a document.
func (s *DocumentStore) ActiveVersion(_ context.Context, documentID string) (*domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for i := len(rec.VersionIDs) - 1; i >= 0; i-- {
		if v := s.versions[rec.VersionIDs[i]]; v.Active {
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CommitVersion applies the commit atomically under the store lock.
func (s *DocumentStore) CommitVersion(_ context.Context, c driven.VersionCommit) error {
	if c.Record == nil || c.Version == nil {
		return fmt.Errorf("%w: commit requires a record and a version", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[c.Record.ID]
	switch {
	case c.CreateRecord && exists:
		return fmt.Errorf("creating document %s: %w", c.Record.ID, domain.ErrAlreadyExists)
	case c.CreateRecord:
		if _, taken := s.bySource[c.Record.SourceLocation]; taken {
			return fmt.Errorf("creating document for %s: %w", c.Record.SourceLocation, domain.ErrAlreadyExists)
		}
		rec = cloneRecord(*c.Record)
		rec.VersionIDs = nil
	case !exists:
		return fmt.Errorf("committing version for %s: %w", c.Record.ID, domain.ErrNotFound)
	}

	// Validate before mutating anything.
	var prev domain.DocumentVersion
	if c.DeactivateVersionID != "" {
		v, ok := s.versions[c.DeactivateVersionID]
		if !ok || !v.Active || v.DocumentID != rec.ID {
			return fmt.Errorf("deactivating version %s: %w", c.DeactivateVersionID, domain.ErrConflict)
		}
		prev = v
	}
	for _, vid := range rec.VersionIDs {
		if s.versions[vid].Active && vid != c.DeactivateVersionID {
			return fmt.Errorf("document %s already has an active version: %w", rec.ID, domain.ErrConflict)
		}
	}

	if c.DeactivateVersionID != "" {
		prev.Active = false
		s.versions[prev.ID] = prev
	}
	v := *c.Version
	v.DocumentID = rec.ID
	s.versions[v.ID] = v
	rec.VersionIDs = append(rec.VersionIDs, v.ID)
	if !c.CreateRecord {
		rec.Title = c.Record.Title
		rec.DishName = c.Record.DishName
	}
	s.records[rec.ID] = rec
	s.bySource[rec.SourceLocation] = rec.ID
	return nil
}

// ClearFragmentIDs empties the fragment id blob of inactive versions.
func (s *DocumentStore) ClearFragmentIDs(_ context.Context, versionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range versionIDs {
		v, ok := s.versions[id]
		if !ok || v.Active {
			continue
		}
		v.FragmentBlob = ""
		s.versions[id] = v
	}
	return nil
}

// DeleteDocument removes a record and all its versions.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, vid := range rec.VersionIDs {
		delete(s.versions, vid)
	}
	delete(s.bySource, rec.SourceLocation)
	delete(s.records, id)
	return nil
}

// SetFragmentBlob overwrites a version's raw blob. Used to simulate corrupt metadata.
func (s *DocumentStore) SetFragmentBlob(versionID, blob string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[versionID]; ok {
		v.FragmentBlob = blob
		s.versions[versionID] = v
	}
}

func cloneRecord(rec domain.DocumentRecord) domain.DocumentRecord {
	rec.VersionIDs = slices.Clone(rec.VersionIDs)
	return rec
}
