package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-process driven.VectorIndex.
//
// With an embedder it ranks by cosine similarity. Without one it ranks by the
// share of query terms found in each fragment, which is enough for tests and
// small local corpora.
type VectorIndex struct {
	mu       sync.RWMutex
	embedder driven.EmbeddingService
	order    []string
	entries  map[string]indexEntry
}

type indexEntry struct {
	fragment domain.Fragment
	vector   []float32
	terms    map[string]bool
}

// NewVectorIndex creates an empty index. embedder may be nil.
func NewVectorIndex(embedder driven.EmbeddingService) *VectorIndex {
	return &VectorIndex{
		embedder: embedder,
		entries:  make(map[string]indexEntry),
	}
}

// Add upserts fragments.
func (x *VectorIndex) Add(ctx context.Context, fragments []domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	var vectors [][]float32
	if x.embedder != nil {
		texts := make([]string, len(fragments))
		for i, f := range fragments {
			texts[i] = f.Content
		}
		var err error
		if vectors, err = x.embedder.EmbedBatch(ctx, texts); err != nil {
			return err
		}
		if len(vectors) != len(fragments) {
			return fmt.Errorf("%w: embedding returned %d vectors for %d fragments",
				domain.ErrEmbeddingUnavailable, len(vectors), len(fragments))
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, f := range fragments {
		e := indexEntry{fragment: f, terms: termSet(f.Content)}
		if vectors != nil {
			e.vector = vectors[i]
		}
		if _, ok := x.entries[f.ID]; !ok {
			x.order = append(x.order, f.ID)
		}
		x.entries[f.ID] = e
	}
	return nil
}

// Delete removes fragments by id.
func (x *VectorIndex) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.entries, id)
	}
	x.order = slices.DeleteFunc(x.order, func(id string) bool {
		_, ok := x.entries[id]
		return !ok
	})
	return nil
}

// Missing returns the ids that are not stored.
func (x *VectorIndex) Missing(_ context.Context, ids []string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []string
	for _, id := range ids {
		if _, ok := x.entries[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Search returns up to k fragments best first. Ties keep insertion order.
func (x *VectorIndex) Search(ctx context.Context, query string, k int, filter *driven.VectorFilter) ([]domain.Fragment, error) {
	var qvec []float32
	if x.embedder != nil {
		var err error
		if qvec, err = x.embedder.Embed(ctx, query); err != nil {
			return nil, err
		}
	}
	qterms := termSet(query)

	x.mu.RLock()
	defer x.mu.RUnlock()
	hits := make([]domain.Fragment, 0, len(x.order))
	for _, id := range x.order {
		e := x.entries[id]
		if !matches(filter, e.fragment.Metadata) {
			continue
		}
		f := e.fragment
		if qvec != nil {
			f.Score = cosine(qvec, e.vector)
		} else {
			f.Score = overlap(qterms, e.terms)
		}
		hits = append(hits, f)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored fragments.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Has reports whether a fragment id is stored.
func (x *VectorIndex) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[id]
	return ok
}

// Close is a no-op.
func (x *VectorIndex) Close() error { return nil }

func matches(f *driven.VectorFilter, m domain.FragmentMetadata) bool {
	if f == nil {
		return true
	}
	if f.OwnerID != "" && m.UserID != f.OwnerID {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, m.Category) {
		return false
	}
	if len(f.Difficulties) > 0 && !slices.Contains(f.Difficulties, m.Difficulty) {
		return false
	}
	return true
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		terms[w] = true
	}
	return terms
}

func overlap(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	n := 0
	for t := range query {
		if doc[t] {
			n++
		}
	}
	return float64(n) / float64(len(query))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
