// Package stamp copies parent metadata onto every fragment.
package stamp

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// Processor stamps the split source's metadata onto each fragment.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a metadata stamp processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "stamp"
}

// Process returns the fragments with metadata copied from src.
func (p *Processor) Process(_ context.Context, src *domain.SplitSource, fragments []domain.Fragment) ([]domain.Fragment, error) {
	for i := range fragments {
		fragments[i].Metadata = src.Metadata
		if fragments[i].DocType == "" {
			fragments[i].DocType = domain.DocTypeChild
		}
	}
	return fragments, nil
}
