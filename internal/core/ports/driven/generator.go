package driven

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// GenerationRequest is the input to answer generation.
type GenerationRequest struct {
	Intent  domain.Intent
	Query   string
	Parents []domain.ParentDocument
}

// Generator produces the user-facing answer for a chat turn.
// It selects a response style per intent.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
