package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
	"github.com/custodia-labs/sous/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// objectIngester is the part of IngestService the watcher drives.
type objectIngester interface {
	Reingest(ctx context.Context, objectName string) error
	Forget(ctx context.Context, objectName string) error
}

// WatchService feeds object store change events into ingestion.
type WatchService struct {
	watcher driven.ObjectWatcher
	bucket  string
	ingest  objectIngester
}

// NewWatchService creates a watcher over bucket.
func NewWatchService(watcher driven.ObjectWatcher, bucket string, ingest objectIngester) *WatchService {
	return &WatchService{watcher: watcher, bucket: bucket, ingest: ingest}
}

// Run handles events one at a time, in arrival order. Per-object failures
// are reported and logged; they never stop the loop.
func (s *WatchService) Run(ctx context.Context, report func(driving.WatchEvent)) error {
	if s.watcher == nil {
		return errors.New("object store does not support watching")
	}
	events, err := s.watcher.Watch(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.bucket, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			out := s.handle(ctx, ev)
			if out.Err != nil {
				logger.Warn("watch: %s: %v", out.ObjectName, out.Err)
			}
			if report != nil {
				report(out)
			}
		}
	}
}

func (s *WatchService) handle(ctx context.Context, ev driven.ObjectEvent) driving.WatchEvent {
	out := driving.WatchEvent{ObjectName: ev.Name}
	switch ev.Kind {
	case driven.ObjectRemoved:
		out.Removed = true
		out.Err = s.ingest.Forget(ctx, ev.Name)
	default:
		logger.Debug("watch: re-ingesting %s", ev.Name)
		out.Err = s.ingest.Reingest(ctx, ev.Name)
	}
	return out
}
