package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/metrics"
)

func makeFragments(n int) []domain.Fragment {
	out := make([]domain.Fragment, n)
	for i := range out {
		out[i] = domain.Fragment{
			ID:               fmt.Sprintf("f-%03d", i),
			ParentDocumentID: "doc-1",
			SequenceIndex:    i,
			Content:          "content",
		}
	}
	return out
}

func TestIndexSynchronizer_Batches(t *testing.T) {
	index := newFlakyIndex()
	s := NewIndexSynchronizer(index, WithBatchSize(100), WithParallelism(2))

	report := s.Sync(context.Background(), makeFragments(250), nil)

	require.NoError(t, report.Err())
	assert.Equal(t, 250, report.Added)
	assert.Equal(t, 3, index.addCalls)
	assert.Equal(t, 0, index.delCalls)
	assert.Equal(t, 250, index.Len())
}

func TestIndexSynchronizer_DeletesThenAdds(t *testing.T) {
	index := newFlakyIndex()
	ctx := context.Background()
	require.NoError(t, index.VectorIndex.Add(ctx, makeFragments(3)))

	s := NewIndexSynchronizer(index)
	add := []domain.Fragment{{ID: "new-1", Content: "x"}}
	report := s.Sync(ctx, add, []string{"f-000", "f-001", "f-000", ""})

	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 1, report.Added)
	assert.False(t, index.Has("f-000"))
	assert.True(t, index.Has("f-002"))
	assert.True(t, index.Has("new-1"))
}

func TestIndexSynchronizer_DeleteFailureDoesNotBlockAdds(t *testing.T) {
	index := newFlakyIndex()
	index.deleteErr = errBoom
	s := NewIndexSynchronizer(index)

	report := s.Sync(context.Background(), makeFragments(5), []string{"old-1"})

	require.Error(t, report.DeleteErr)
	assert.ErrorIs(t, report.DeleteErr, domain.ErrDependencyFailure)
	assert.NoError(t, report.AddErr)
	assert.Equal(t, 5, report.Added)
	assert.Equal(t, 5, index.Len())
}

func TestIndexSynchronizer_AddFailureIsPerBatch(t *testing.T) {
	index := newFlakyIndex()
	index.addErr = func(batch []domain.Fragment) error {
		if batch[0].ID == "f-002" {
			return errBoom
		}
		return nil
	}
	m := metrics.New()
	s := NewIndexSynchronizer(index, WithBatchSize(2), WithSyncMetrics(m))

	report := s.Sync(context.Background(), makeFragments(6), nil)

	require.ErrorIs(t, report.AddErr, errBoom)
	assert.NoError(t, report.DeleteErr)
	assert.Equal(t, 4, report.Added)
	assert.False(t, index.Has("f-002"))
	assert.True(t, index.Has("f-004"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.SyncFailures.WithLabelValues("add")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.FragmentsSynced.WithLabelValues("add")), 0)
}

func TestIndexSynchronizer_NoIndex(t *testing.T) {
	s := NewIndexSynchronizer(nil)

	report := s.Sync(context.Background(), makeFragments(1), nil)
	assert.ErrorIs(t, report.AddErr, domain.ErrVectorIndexUnavailable)

	empty := s.Sync(context.Background(), nil, nil)
	assert.NoError(t, empty.Err())
}

func TestIndexSynchronizer_Empty(t *testing.T) {
	index := newFlakyIndex()
	report := NewIndexSynchronizer(index).Sync(context.Background(), nil, nil)
	assert.NoError(t, report.Err())
	assert.Zero(t, index.addCalls)
	assert.Zero(t, index.delCalls)
}

func TestIndexSynchronizer_Missing(t *testing.T) {
	index := newFlakyIndex()
	ctx := context.Background()
	require.NoError(t, index.VectorIndex.Add(ctx, makeFragments(5)))

	s := NewIndexSynchronizer(index, WithBatchSize(2))
	missing, err := s.Missing(ctx, []string{"f-000", "gone-1", "f-003", "f-004", "gone-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gone-1", "gone-2"}, missing)

	_, err = NewIndexSynchronizer(nil).Missing(ctx, []string{"f-000"})
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}
