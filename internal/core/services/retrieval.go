package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metadata"
)

// DefaultTopK is the number of fragments retrieved per turn.
const DefaultTopK = 5

// maxParentBytes bounds how much of a parent document is read back.
const maxParentBytes = 4 << 20

// RetrievalEngine runs similarity search and rebuilds whole parent documents
// from the fragments it returns.
type RetrievalEngine struct {
	index     driven.VectorIndex
	docs      driven.DocumentStore
	objects   driven.ObjectStore
	extractor *metadata.Extractor
}

// NewRetrievalEngine creates a retrieval engine.
func NewRetrievalEngine(
	index driven.VectorIndex,
	docs driven.DocumentStore,
	objects driven.ObjectStore,
	extractor *metadata.Extractor,
) *RetrievalEngine {
	if extractor == nil {
		extractor = metadata.NewExtractor(nil)
	}
	return &RetrievalEngine{
		index:     index,
		docs:      docs,
		objects:   objects,
		extractor: extractor,
	}
}

// Search returns up to k fragments for query.
//
// A nil filter is a broad search in index order. A non-nil filter is always
// scoped to ownerID as well as to its categories and difficulties.
func (e *RetrievalEngine) Search(
	ctx context.Context,
	query, ownerID string,
	filter *domain.SearchFilter,
	k int,
) ([]domain.Fragment, error) {
	if e.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if k <= 0 {
		k = DefaultTopK
	}

	if filter == nil {
		hits, err := e.index.Search(ctx, query, k, nil)
		if err != nil {
			return nil, domain.Dependency("searching index", err)
		}
		return hits, nil
	}

	if ownerID == "" {
		return nil, fmt.Errorf("%w: filtered search requires an owner", domain.ErrValidation)
	}
	hits, err := e.index.Search(ctx, query, k, &driven.VectorFilter{
		OwnerID:      ownerID,
		Categories:   filter.Categories,
		Difficulties: filter.Difficulties,
	})
	if err != nil {
		return nil, domain.Dependency("searching index", err)
	}

	// The index is trusted to filter, but another owner's fragment must never leak.
	owned := hits[:0]
	for _, f := range hits {
		if f.Metadata.UserID == ownerID {
			owned = append(owned, f)
		} else {
			logger.Warn("dropping fragment %s not owned by the caller", f.ID)
		}
	}
	return owned, nil
}

// ReconstructParents re-reads the full source of every distinct parent of
// fragments and ranks them by descending hit count. Parents that cannot be
// located or read are logged and skipped.
func (e *RetrievalEngine) ReconstructParents(ctx context.Context, fragments []domain.Fragment) ([]domain.ParentDocument, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	// 1. Distinct parents in first-seen order, with hit counts
	var order []string
	hits := make(map[string]int)
	for _, f := range fragments {
		if f.ParentDocumentID == "" {
			continue
		}
		if _, ok := hits[f.ParentDocumentID]; !ok {
			order = append(order, f.ParentDocumentID)
		}
		hits[f.ParentDocumentID]++
	}

	// 2. Re-read each parent from the object store
	parents := make([]domain.ParentDocument, 0, len(order))
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent, err := e.loadParent(ctx, id)
		if err != nil {
			logger.Warn("skipping parent %s: %v", id, err)
			continue
		}
		parent.Hits = hits[id]
		parents = append(parents, *parent)
	}

	// 3. Rank by hit count; ties keep first-seen order
	sort.SliceStable(parents, func(i, j int) bool {
		return parents[i].Hits > parents[j].Hits
	})
	return parents, nil
}

func (e *RetrievalEngine) loadParent(ctx context.Context, documentID string) (*domain.ParentDocument, error) {
	rec, err := e.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("looking up record: %w", err)
	}
	loc, err := domain.ParseLocation(rec.SourceLocation)
	if err != nil {
		return nil, err
	}
	if e.objects == nil || loc.Scheme != e.objects.Scheme() {
		return nil, fmt.Errorf("%w: no object store for scheme %q", domain.ErrInvalidInput, loc.Scheme)
	}

	rc, err := e.objects.Get(ctx, loc.Bucket, loc.Object)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rec.SourceLocation, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxParentBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rec.SourceLocation, err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty content")
	}

	content := string(data)
	meta := e.extractor.Extract(loc.Object, content)
	return &domain.ParentDocument{
		DocumentID:     rec.ID,
		SourceLocation: rec.SourceLocation,
		Title:          meta.Title,
		Content:        content,
		Metadata:       meta.Fragment(rec.OwnerID, rec.SourceLocation),
	}, nil
}
