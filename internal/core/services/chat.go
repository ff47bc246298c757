package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metrics"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

const tracerName = "github.com/custodia-labs/sous/internal/core/services"

// ChatService sequences one chat turn: classify, rewrite, filter, search,
// reconstruct, generate. Each stage feeds the next; independent turns share
// no state.
type ChatService struct {
	router    *QueryRouter
	retrieval *RetrievalEngine
	generator driven.Generator
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	topK      int
}

// NewChatService creates a chat service.
func NewChatService(
	router *QueryRouter,
	retrieval *RetrievalEngine,
	generator driven.Generator,
	m *metrics.Metrics,
) *ChatService {
	return &ChatService{
		router:    router,
		retrieval: retrieval,
		generator: generator,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
		topK:      DefaultTopK,
	}
}

// Turn answers query for ownerID.
func (s *ChatService) Turn(ctx context.Context, ownerID, query string) (*domain.TurnResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: owner and query are required", domain.ErrValidation)
	}

	ctx, span := s.tracer.Start(ctx, "chat.turn", trace.WithAttributes(attribute.String("owner", ownerID)))
	defer span.End()

	result := &domain.TurnResult{}

	// 1. Classify
	result.Intent = stage(ctx, s, "classify", func(ctx context.Context) domain.Intent {
		return s.router.Classify(ctx, query)
	})
	span.SetAttributes(attribute.String("intent", string(result.Intent)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Rewrite unless the user only wants names
	result.RewrittenQuery = query
	if result.Intent != domain.IntentList {
		result.RewrittenQuery = stage(ctx, s, "rewrite", func(ctx context.Context) string {
			return s.router.Rewrite(ctx, query)
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Extract filter; nil means broad search
	result.Filter = stage(ctx, s, "filter", func(ctx context.Context) *domain.SearchFilter {
		return s.router.ExtractFilter(ctx, result.RewrittenQuery)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Search
	var searchErr error
	fragments := stage(ctx, s, "search", func(ctx context.Context) []domain.Fragment {
		f, err := s.retrieval.Search(ctx, result.RewrittenQuery, ownerID, result.Filter, s.topK)
		searchErr = err
		return f
	})
	if searchErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("search failed for %s: %v", ownerID, searchErr)
		span.SetStatus(codes.Error, "search failed")
		return nil, domain.ErrRetrievalFailed
	}

	// 5. Reconstruct parents
	var reconErr error
	result.Parents = stage(ctx, s, "reconstruct", func(ctx context.Context) []domain.ParentDocument {
		p, err := s.retrieval.ReconstructParents(ctx, fragments)
		reconErr = err
		return p
	})
	if reconErr != nil {
		if errors.Is(reconErr, context.Canceled) || errors.Is(reconErr, context.DeadlineExceeded) {
			return nil, reconErr
		}
		logger.Error("reconstruct failed for %s: %v", ownerID, reconErr)
		span.SetStatus(codes.Error, "reconstruct failed")
		return nil, domain.ErrRetrievalFailed
	}

	// 6. Generate
	var genErr error
	result.Answer = stage(ctx, s, "generate", func(ctx context.Context) string {
		a, err := s.generator.Generate(ctx, driven.GenerationRequest{
			Intent:  result.Intent,
			Query:   result.RewrittenQuery,
			Parents: result.Parents,
		})
		genErr = err
		return a
	})
	if genErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("generation failed for %s: %v", ownerID, genErr)
		span.SetStatus(codes.Error, "generation failed")
		return nil, fmt.Errorf("generating answer: %w", domain.ErrDependencyFailure)
	}

	s.metrics.Turn(string(result.Intent))
	return result, nil
}

// stage runs fn inside a child span and records its latency.
func stage[T any](ctx context.Context, s *ChatService, name string, fn func(context.Context) T) T {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chat."+name)
	defer func() {
		span.End()
		s.metrics.ObserveStage(name, start)
	}()
	return fn(ctx)
}
