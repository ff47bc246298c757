package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/postprocessors"
)

const testBucket = "recipes"

var errBoom = errors.New("boom")

// scriptedLLM answers each prompt kind from a fixed table.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{replies: map[string]string{}, errs: map[string]error{}}
}

func (l *scriptedLLM) reply(kind, text string) *scriptedLLM {
	l.replies[kind] = text
	return l
}

func (l *scriptedLLM) fail(kind string, err error) *scriptedLLM {
	l.errs[kind] = err
	return l
}

func (l *scriptedLLM) called(kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.calls {
		if c == kind {
			return true
		}
	}
	return false
}

func promptKind(prompt string) string {
	switch {
	case strings.Contains(prompt, "Classify the user's"):
		return driven.PromptClassify
	case strings.Contains(prompt, "You rewrite recipe"):
		return driven.PromptQueryRewrite
	case strings.Contains(prompt, "Pick the difficulty"):
		return driven.PromptDifficultyFilter
	case strings.Contains(prompt, "Pick one or more dish categories"):
		return driven.PromptCategoryFilter
	default:
		return "other"
	}
}

func (l *scriptedLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	kind := promptKind(prompt)
	l.mu.Lock()
	l.calls = append(l.calls, kind)
	l.mu.Unlock()
	if err := l.errs[kind]; err != nil {
		return "", err
	}
	return l.replies[kind], nil
}

func (l *scriptedLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return "", domain.ErrNotImplemented
}

func (l *scriptedLLM) ModelName() string          { return "scripted" }
func (l *scriptedLLM) Ping(context.Context) error { return nil }
func (l *scriptedLLM) Close() error               { return nil }

// flakyIndex wraps the in-memory index with injectable failures.
type flakyIndex struct {
	*memory.VectorIndex

	mu        sync.Mutex
	addCalls  int
	delCalls  int
	addErr    func(batch []domain.Fragment) error
	deleteErr error
	searchErr error
	extra     []domain.Fragment
}

func newFlakyIndex() *flakyIndex {
	return &flakyIndex{VectorIndex: memory.NewVectorIndex(nil)}
}

func (x *flakyIndex) Add(ctx context.Context, fragments []domain.Fragment) error {
	x.mu.Lock()
	x.addCalls++
	x.mu.Unlock()
	if x.addErr != nil {
		if err := x.addErr(fragments); err != nil {
			return err
		}
	}
	return x.VectorIndex.Add(ctx, fragments)
}

func (x *flakyIndex) Delete(ctx context.Context, ids []string) error {
	x.mu.Lock()
	x.delCalls++
	x.mu.Unlock()
	if x.deleteErr != nil {
		return x.deleteErr
	}
	return x.VectorIndex.Delete(ctx, ids)
}

func (x *flakyIndex) Search(ctx context.Context, query string, k int, f *driven.VectorFilter) ([]domain.Fragment, error) {
	if x.searchErr != nil {
		return nil, x.searchErr
	}
	hits, err := x.VectorIndex.Search(ctx, query, k, f)
	return append(hits, x.extra...), err
}

// stubGenerator returns a fixed answer and records the last request.
type stubGenerator struct {
	answer string
	err    error
	last   driven.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req driven.GenerationRequest) (string, error) {
	g.last = req
	return g.answer, g.err
}

// conflictStore fails every commit with a conflict.
type conflictStore struct {
	*memory.DocumentStore
}

func (conflictStore) CommitVersion(context.Context, driven.VersionCommit) error {
	return fmt.Errorf("deactivating version: %w", domain.ErrConflict)
}

func fixedSplit(n int) SplitFunc {
	return func(_ context.Context, src *domain.SplitSource) ([]domain.Fragment, error) {
		out := make([]domain.Fragment, n)
		for i := range out {
			out[i] = domain.Fragment{
				ID:               uuid.New().String(),
				ParentDocumentID: src.DocumentID,
				ParentVersionID:  src.VersionID,
				SequenceIndex:    i,
				DocType:          domain.DocTypeChild,
				Content:          fmt.Sprintf("part %d", i),
				Metadata:         src.Metadata,
			}
		}
		return out, nil
	}
}

func defaultPipeline(t *testing.T) *postprocessors.Pipeline {
	t.Helper()
	r := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(r)
	p, err := postprocessors.Build(r, nil, map[string]map[string]any{
		"chunker": {"chunk_size": 40, "overlap": 10},
	})
	require.NoError(t, err)
	return p
}

func loc(object string) string {
	return "minio://" + testBucket + "/" + object
}

func idsOf(fragments []domain.Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.ID
	}
	return out
}
