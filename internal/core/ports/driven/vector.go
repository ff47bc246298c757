package driven

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// VectorFilter constrains a similarity search. Within a list values are
// OR-ed; the lists and the owner are AND-ed. Empty fields do not constrain.
type VectorFilter struct {
	OwnerID      string
	Categories   []string
	Difficulties []string
}

// VectorIndex stores fragments and serves similarity search.
// Add with an existing fragment id is an upsert.
type VectorIndex interface {
	// Add upserts fragments.
	Add(ctx context.Context, fragments []domain.Fragment) error

	// Delete removes fragments by id. Absent ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Missing returns the ids from ids that the index does not hold,
	// in input order.
	Missing(ctx context.Context, ids []string) ([]string, error)

	// Search returns up to k fragments most similar to query, best first.
	// A nil filter searches everything.
	Search(ctx context.Context, query string, k int, filter *VectorFilter) ([]domain.Fragment, error)

	// Close releases resources.
	Close() error
}
