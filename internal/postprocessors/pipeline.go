// Package postprocessors provides the chunking pipeline that turns version text into fragments.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the source through all processors in order.
// The first processor receives nil fragments and should create them.
// Subsequent processors receive and may modify the fragments.
func (p *Pipeline) Process(ctx context.Context, src *domain.SplitSource) ([]domain.Fragment, error) {
	if src == nil {
		return nil, fmt.Errorf("split source is nil")
	}

	var fragments []domain.Fragment

	for _, processor := range p.processors {
		var err error
		fragments, err = processor.Process(ctx, src, fragments)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return fragments, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
