package driven

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// PostProcessor turns a version's text into fragments.
// PostProcessors are chained in a pipeline (e.g., chunking, metadata stamping).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a split source and returns fragments.
	// If the processor modifies fragments (e.g., stamping), it receives and returns them.
	// If the processor creates fragments (e.g., chunker), it receives nil and returns new ones.
	Process(ctx context.Context, src *domain.SplitSource, fragments []domain.Fragment) ([]domain.Fragment, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the source through all processors in order.
	// Returns the final fragments after all processing.
	Process(ctx context.Context, src *domain.SplitSource) ([]domain.Fragment, error)
}
