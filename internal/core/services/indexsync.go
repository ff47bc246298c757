package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metrics"
)

// Default synchronizer settings.
const (
	DefaultSyncBatchSize   = 100
	DefaultSyncParallelism = 4
)

// SyncReport is the outcome of one Sync call. Additions and deletions are
// reported independently.
type SyncReport struct {
	Added     int
	Deleted   int
	AddErr    error
	DeleteErr error
}

// Err joins both errors.
func (r SyncReport) Err() error {
	return errors.Join(r.DeleteErr, r.AddErr)
}

// IndexSynchronizer reconciles fragment additions and deletions against the
// vector index. Fragment ids are stable, so re-running a partially failed
// sync converges.
type IndexSynchronizer struct {
	index       driven.VectorIndex
	batchSize   int
	parallelism int
	metrics     *metrics.Metrics
}

// SyncOption configures an IndexSynchronizer.
type SyncOption func(*IndexSynchronizer)

// WithBatchSize sets the number of fragments per index call.
func WithBatchSize(n int) SyncOption {
	return func(s *IndexSynchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithParallelism sets how many addition batches run at once.
func WithParallelism(n int) SyncOption {
	return func(s *IndexSynchronizer) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithSyncMetrics records synced fragments and failures.
func WithSyncMetrics(m *metrics.Metrics) SyncOption {
	return func(s *IndexSynchronizer) {
		s.metrics = m
	}
}

// NewIndexSynchronizer creates a synchronizer over index.
func NewIndexSynchronizer(index driven.VectorIndex, opts ...SyncOption) *IndexSynchronizer {
	s := &IndexSynchronizer{
		index:       index,
		batchSize:   DefaultSyncBatchSize,
		parallelism: DefaultSyncParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync deletes del and then adds add. A failure on one side never prevents
// the other from being attempted.
func (s *IndexSynchronizer) Sync(ctx context.Context, add []domain.Fragment, del []string) SyncReport {
	var report SyncReport
	if s.index == nil {
		if len(add) > 0 || len(del) > 0 {
			report.AddErr = domain.ErrVectorIndexUnavailable
			report.DeleteErr = domain.ErrVectorIndexUnavailable
		}
		return report
	}

	report.Deleted, report.DeleteErr = s.delete(ctx, dedupe(del))
	report.Added, report.AddErr = s.add(ctx, add)

	if report.Added > 0 || report.Deleted > 0 {
		logger.Info("index sync: %d added, %d deleted", report.Added, report.Deleted)
	}
	return report
}

// Missing returns the ids the index does not hold, checked batch by batch.
func (s *IndexSynchronizer) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	var out []string
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		missing, err := s.index.Missing(ctx, ids[start:end])
		if err != nil {
			return nil, domain.Dependency("checking indexed fragments", err)
		}
		out = append(out, missing...)
	}
	return out, nil
}

// delete removes ids batch by batch, continuing past failed batches.
func (s *IndexSynchronizer) delete(ctx context.Context, ids []string) (int, error) {
	var (
		deleted int
		errs    []error
	)
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		if err := s.index.Delete(ctx, ids[start:end]); err != nil {
			s.metrics.SyncFailed("delete")
			errs = append(errs, fmt.Errorf("delete batch %d-%d: %w", start, end, err))
			continue
		}
		deleted += end - start
	}
	s.metrics.Synced("delete", deleted)
	if len(errs) > 0 {
		return deleted, domain.Dependency("deleting fragments", errors.Join(errs...))
	}
	return deleted, nil
}

// add upserts fragments in disjoint batches, several at a time.
func (s *IndexSynchronizer) add(ctx context.Context, fragments []domain.Fragment) (int, error) {
	if len(fragments) == 0 {
		return 0, nil
	}

	batches := (len(fragments) + s.batchSize - 1) / s.batchSize
	errs := make([]error, batches)
	added := make([]int, batches)

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for b := 0; b < batches; b++ {
		start := b * s.batchSize
		end := min(start+s.batchSize, len(fragments))
		g.Go(func() error {
			if err := s.index.Add(ctx, fragments[start:end]); err != nil {
				s.metrics.SyncFailed("add")
				errs[b] = fmt.Errorf("add batch %d-%d: %w", start, end, err)
				return nil
			}
			added[b] = end - start
			logger.Debug("added batch %d/%d (%d fragments)", b+1, batches, end-start)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range added {
		total += n
	}
	s.metrics.Synced("add", total)
	if err := errors.Join(errs...); err != nil {
		return total, domain.Dependency("adding fragments", err)
	}
	return total, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
