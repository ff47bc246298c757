package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metadata"
	"github.com/custodia-labs/sous/internal/metrics"
)

// SplitFunc turns one version's text into fragments.
type SplitFunc func(ctx context.Context, src *domain.SplitSource) ([]domain.Fragment, error)

// ReconcileInput is one observed document.
type ReconcileInput struct {
	// SourceLocation is scheme://bucket/object.
	SourceLocation string

	// OwnerID is the owner derived from the object path.
	OwnerID string

	// Content is the raw document text.
	Content string
}

// Versioner owns the version history of every document and decides, for each
// observation, whether it is new, unchanged or updated.
type Versioner struct {
	store     driven.DocumentStore
	extractor *metadata.Extractor
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewVersioner creates a versioner over store.
func NewVersioner(store driven.DocumentStore, extractor *metadata.Extractor, m *metrics.Metrics) *Versioner {
	if extractor == nil {
		extractor = metadata.NewExtractor(nil)
	}
	return &Versioner{
		store:     store,
		extractor: extractor,
		metrics:   m,
		now:       time.Now,
	}
}

// Reconcile records content observed at a source location.
//
// New or changed content is split before anything is written, then the
// record, the deactivation of the previous version and the new version with
// its fragment ids are committed in one transaction. Orphaned fragment ids
// are only reported after that commit succeeds.
func (v *Versioner) Reconcile(ctx context.Context, in ReconcileInput, split SplitFunc) (*domain.ReconcileOutcome, error) {
	if in.SourceLocation == "" || in.OwnerID == "" {
		return nil, fmt.Errorf("%w: source location and owner are required", domain.ErrValidation)
	}
	loc, err := domain.ParseLocation(in.SourceLocation)
	if err != nil {
		return nil, err
	}

	hash := metadata.Hash(in.Content)

	// 1. Look up the existing record
	rec, err := v.store.GetBySource(ctx, in.SourceLocation)
	isNew := errors.Is(err, domain.ErrNotFound)
	if err != nil && !isNew {
		return nil, domain.Dependency("looking up document", err)
	}

	var (
		active   *domain.DocumentVersion
		versions []domain.DocumentVersion
	)
	if !isNew {
		if rec.OwnerID != in.OwnerID {
			return nil, fmt.Errorf("document %s: %w", in.SourceLocation, domain.ErrPermissionDenied)
		}

		versions, err = v.store.ListVersions(ctx, rec.ID)
		if err != nil {
			return nil, domain.Dependency("listing versions", err)
		}
		active = activeOf(versions)

		// 2. Same content as the active version: nothing to write, but report
		// fragments of older versions an earlier purge failed to remove
		if active != nil && active.ContentHash == hash {
			out := &domain.ReconcileOutcome{
				Kind:    domain.OutcomeUnchanged,
				Record:  rec,
				Current: active,
			}
			out.OrphanedFragmentIDs, out.RetiredVersionIDs = leftovers(versions, active, in.SourceLocation)
			v.metrics.Reconciled(string(domain.OutcomeUnchanged))
			logger.Debug("unchanged: %s (v%d, %d orphans)", in.SourceLocation, active.VersionNumber, len(out.OrphanedFragmentIDs))
			return out, nil
		}
	}

	// 3. Build the record and the next version
	meta := v.extractor.Extract(loc.Object, in.Content)
	now := v.now()
	if isNew {
		rec = &domain.DocumentRecord{
			ID:             uuid.New().String(),
			OwnerID:        in.OwnerID,
			SourceLocation: in.SourceLocation,
			CreatedAt:      now,
		}
	}
	rec.Title = meta.Title
	rec.DishName = meta.DishName

	next := &domain.DocumentVersion{
		ID:            uuid.New().String(),
		DocumentID:    rec.ID,
		ContentHash:   hash,
		VersionNumber: maxVersion(versions) + 1,
		Active:        true,
		CreatedAt:     now,
	}

	// 4. Split before committing so the new version never becomes active without fragments
	fragments, err := split(ctx, &domain.SplitSource{
		DocumentID: rec.ID,
		VersionID:  next.ID,
		Content:    in.Content,
		Metadata:   meta.Fragment(in.OwnerID, in.SourceLocation),
	})
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", in.SourceLocation, err)
	}
	ids := make([]string, len(fragments))
	for i, f := range fragments {
		ids[i] = f.ID
	}
	next.SetFragmentIDs(ids)

	// 5. Commit record, deactivation and new version together
	commit := driven.VersionCommit{
		Record:       rec,
		CreateRecord: isNew,
		Version:      next,
	}
	if active != nil {
		commit.DeactivateVersionID = active.ID
	}
	if err := v.store.CommitVersion(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("committing %s: %w", in.SourceLocation, domain.ErrConflict)
		}
		return nil, domain.Dependency("committing version", err)
	}
	rec.VersionIDs = append(rec.VersionIDs, next.ID)

	out := &domain.ReconcileOutcome{
		Kind:      domain.OutcomeCreated,
		Record:    rec,
		Current:   next,
		Fragments: fragments,
	}

	// 6. Collect orphans from the version just retired and any leftovers
	if !isNew {
		out.Kind = domain.OutcomeUpdated
		if active != nil {
			prev := *active
			prev.Active = false
			out.Previous = &prev
		}
		out.OrphanedFragmentIDs, out.RetiredVersionIDs = collectFragmentIDs(versions, in.SourceLocation)
	}

	v.metrics.Reconciled(string(out.Kind))
	logger.Debug("%s: %s (v%d, %d fragments, %d orphans)",
		out.Kind, in.SourceLocation, next.VersionNumber, len(fragments), len(out.OrphanedFragmentIDs))
	return out, nil
}

// Restore re-splits the content of an unchanged active version and gives the
// fragments the ids recorded on that version, in order. It fails with
// ErrConflict when the content no longer splits into the recorded number of
// fragments.
func (v *Versioner) Restore(ctx context.Context, outcome *domain.ReconcileOutcome, content string, split SplitFunc) ([]domain.Fragment, error) {
	rec, ver := outcome.Record, outcome.Current
	if rec == nil || ver == nil {
		return nil, fmt.Errorf("%w: restore needs a record and its active version", domain.ErrValidation)
	}
	ids, err := ver.FragmentIDs()
	if err != nil {
		return nil, fmt.Errorf("%s v%d: %w", rec.SourceLocation, ver.VersionNumber, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	loc, err := domain.ParseLocation(rec.SourceLocation)
	if err != nil {
		return nil, err
	}

	meta := v.extractor.Extract(loc.Object, content)
	fragments, err := split(ctx, &domain.SplitSource{
		DocumentID: rec.ID,
		VersionID:  ver.ID,
		Content:    content,
		Metadata:   meta.Fragment(rec.OwnerID, rec.SourceLocation),
	})
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", rec.SourceLocation, err)
	}
	if len(fragments) != len(ids) {
		return nil, fmt.Errorf("%w: %s v%d splits into %d fragments but %d are recorded",
			domain.ErrConflict, rec.SourceLocation, ver.VersionNumber, len(fragments), len(ids))
	}
	for i := range fragments {
		fragments[i].ID = ids[i]
	}
	return fragments, nil
}

// ExplicitDelete removes a document and returns every fragment id recorded on
// any of its versions. Corrupt fragment lists are logged and skipped so that
// deletion of the record is never blocked by them.
func (v *Versioner) ExplicitDelete(ctx context.Context, sourceLocation, ownerID string) ([]string, error) {
	if sourceLocation == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: source location and owner are required", domain.ErrValidation)
	}

	rec, err := v.store.GetBySource(ctx, sourceLocation)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("document %s: %w", sourceLocation, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Dependency("looking up document", err)
	}
	if rec.OwnerID != ownerID {
		return nil, fmt.Errorf("document %s: %w", sourceLocation, domain.ErrPermissionDenied)
	}

	versions, err := v.store.ListVersions(ctx, rec.ID)
	if err != nil {
		return nil, domain.Dependency("listing versions", err)
	}
	ids, _ := collectFragmentIDs(versions, sourceLocation)

	if err := v.store.DeleteDocument(ctx, rec.ID); err != nil {
		return nil, domain.Dependency("deleting document", err)
	}

	logger.Info("deleted %s with %d versions, %d fragments to purge", sourceLocation, len(versions), len(ids))
	return ids, nil
}

// ClearRetired forgets the fragment ids of versions whose fragments are
// confirmed gone from the vector index.
func (v *Versioner) ClearRetired(ctx context.Context, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return nil
	}
	if err := v.store.ClearFragmentIDs(ctx, versionIDs); err != nil {
		return domain.Dependency("clearing fragment ids", err)
	}
	return nil
}

// collectFragmentIDs returns the deduplicated fragment ids of the given
// versions in order, and the ids of the versions that contributed.
func collectFragmentIDs(versions []domain.DocumentVersion, source string) (ids, contributors []string) {
	seen := make(map[string]bool)
	for i := range versions {
		ver := &versions[i]
		if ver.FragmentBlob == "" {
			continue
		}
		fids, err := ver.FragmentIDs()
		if err != nil {
			logger.Warn("skipping fragment ids of %s v%d: %v", source, ver.VersionNumber, err)
			continue
		}
		contributors = append(contributors, ver.ID)
		for _, id := range fids {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, contributors
}

// leftovers collects the fragment ids still recorded on inactive versions,
// minus any the active version also holds.
func leftovers(versions []domain.DocumentVersion, active *domain.DocumentVersion, source string) (ids, retired []string) {
	inactive := make([]domain.DocumentVersion, 0, len(versions))
	for _, ver := range versions {
		if ver.ID != active.ID {
			inactive = append(inactive, ver)
		}
	}
	ids, retired = collectFragmentIDs(inactive, source)
	if len(ids) == 0 {
		return nil, retired
	}
	keep, _ := active.FragmentIDs()
	held := make(map[string]bool, len(keep))
	for _, id := range keep {
		held[id] = true
	}
	out := ids[:0]
	for _, id := range ids {
		if !held[id] {
			out = append(out, id)
		}
	}
	return out, retired
}

func activeOf(versions []domain.DocumentVersion) *domain.DocumentVersion {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Active {
			v := versions[i]
			return &v
		}
	}
	return nil
}

func maxVersion(versions []domain.DocumentVersion) int {
	n := 0
	for _, v := range versions {
		if v.VersionNumber > n {
			n = v.VersionNumber
		}
	}
	return n
}
