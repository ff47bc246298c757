package driving

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// ChatService answers one user turn.
type ChatService interface {
	// Turn classifies, retrieves and generates an answer for query.
	Turn(ctx context.Context, ownerID, query string) (*domain.TurnResult, error)
}
