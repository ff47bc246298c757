package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metrics"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// markdownExt is the only object extension ingested.
const markdownExt = ".md"

// IngestService drives ingestion from the object store into the document
// store and the vector index.
type IngestService struct {
	objects   driven.ObjectStore
	bucket    string
	versioner *Versioner
	pipeline  driven.PostProcessorPipeline
	syncer    *IndexSynchronizer
	metrics   *metrics.Metrics

	// Status tracking
	mu     sync.RWMutex
	status driving.SyncStatus
}

// NewIngestService creates an ingestion service over one bucket.
func NewIngestService(
	objects driven.ObjectStore,
	bucket string,
	versioner *Versioner,
	pipeline driven.PostProcessorPipeline,
	syncer *IndexSynchronizer,
	m *metrics.Metrics,
) *IngestService {
	return &IngestService{
		objects:   objects,
		bucket:    bucket,
		versioner: versioner,
		pipeline:  pipeline,
		syncer:    syncer,
		metrics:   m,
	}
}

// Rebuild scans every markdown object in the bucket, reconciles each one and
// then synchronises the index once with everything collected. A failing
// document is counted and logged; it never aborts the scan.
//
//nolint:gocyclo // Sequential scan with per-document error accounting
func (s *IngestService) Rebuild(ctx context.Context) (*driving.RebuildReport, error) {
	if !s.begin() {
		return nil, domain.ErrSyncInProgress
	}
	report := &driving.RebuildReport{}
	defer func() { s.finish() }()

	// 1. Check the bucket
	ok, err := s.objects.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, domain.Dependency("checking bucket", err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", s.bucket, domain.ErrNotFound)
	}

	// 2. List everything
	objects, err := s.objects.List(ctx, s.bucket, "", true)
	if err != nil {
		return nil, domain.Dependency("listing objects", err)
	}
	logger.Info("Starting rebuild of %s (%d objects)", s.bucket, len(objects))

	var (
		toAdd       []domain.Fragment
		toDelete    []string
		retired     []string
		restoreErrs []error
	)

	// 3. Reconcile each markdown object
	for _, obj := range objects {
		if obj.IsDir || !isMarkdown(obj.Name) {
			continue
		}
		owner, ok := domain.OwnerOf(obj.Name)
		if !ok {
			logger.Debug("skipping %s: no owner prefix", obj.Name)
			report.Skipped++
			continue
		}
		report.Scanned++

		outcome, content, err := s.ingestObject(ctx, owner, obj.Name)
		if err != nil {
			report.Failed++
			s.metrics.DocumentFailed()
			s.recordError()
			logger.Warn("failed to ingest %s: %v", obj.Name, err)
			continue
		}
		s.recordProcessed()

		if outcome == nil {
			report.Skipped++
			continue
		}
		switch outcome.Kind {
		case domain.OutcomeCreated:
			report.Created++
		case domain.OutcomeUpdated:
			report.Updated++
		default:
			report.Unchanged++
		}
		add, err := s.additions(ctx, outcome, content)
		if err != nil {
			logger.Warn("restoring fragments of %s: %v", obj.Name, err)
			restoreErrs = append(restoreErrs, fmt.Errorf("%s: %w", obj.Name, err))
		}
		if outcome.Kind == domain.OutcomeUnchanged {
			report.Restored += len(add)
		}
		toAdd = append(toAdd, add...)
		toDelete = append(toDelete, outcome.OrphanedFragmentIDs...)
		retired = append(retired, outcome.RetiredVersionIDs...)
	}

	// 4. One sync with the union of everything
	sr := s.syncer.Sync(ctx, toAdd, toDelete)
	report.FragmentsAdded = sr.Added
	report.FragmentsDeleted = sr.Deleted
	report.AddErr = errors.Join(sr.AddErr, errors.Join(restoreErrs...))
	report.DeleteErr = sr.DeleteErr

	// 5. Forget fragment ids whose deletion is confirmed
	if sr.DeleteErr == nil {
		if err := s.versioner.ClearRetired(ctx, retired); err != nil {
			logger.Warn("clearing retired fragment ids: %v", err)
		}
	}

	logger.Info("Rebuild complete: %d scanned, %d created, %d updated, %d unchanged, %d failed",
		report.Scanned, report.Created, report.Updated, report.Unchanged, report.Failed)
	return report, nil
}

// Upload stores fileName under ownerID's prefix, reconciles it and syncs the index.
func (s *IngestService) Upload(ctx context.Context, ownerID, fileName string, content []byte) (*driving.UploadResult, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateFileName(fileName); err != nil {
		return nil, err
	}

	objectName := ownerID + "/" + fileName
	if err := s.objects.Put(ctx, s.bucket, objectName, bytes.NewReader(content), int64(len(content))); err != nil {
		return nil, domain.Dependency("storing object", err)
	}

	loc := s.location(objectName)
	result := &driving.UploadResult{ObjectName: objectName, SourceLocation: loc}

	outcome, err := s.reconcile(ctx, ownerID, loc, string(content))
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		result.Status = "empty"
		return result, nil
	}
	result.Status = string(outcome.Kind)
	result.VersionNumber = outcome.Current.VersionNumber
	result.Fragments = len(outcome.Fragments)
	result.Orphans = len(outcome.OrphanedFragmentIDs)

	add, restoreErr := s.additions(ctx, outcome, string(content))
	sr := s.push(ctx, add, outcome)
	if err := errors.Join(restoreErr, sr.Err()); err != nil {
		return result, fmt.Errorf("syncing index for %s: %w", objectName, err)
	}
	return result, nil
}

// Delete removes an owner's object and purges every fragment it ever produced.
// objectName may be a bare file name or a path under the owner's prefix.
func (s *IngestService) Delete(ctx context.Context, ownerID, objectName string) (*driving.DeleteResult, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if objectName == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	if strings.Contains(objectName, "/") {
		if !strings.HasPrefix(objectName, ownerID+"/") {
			return nil, fmt.Errorf("object %s: %w", objectName, domain.ErrPermissionDenied)
		}
	} else {
		objectName = ownerID + "/" + objectName
	}
	if strings.Contains(objectName, "..") {
		return nil, fmt.Errorf("%w: invalid object name %q", domain.ErrValidation, objectName)
	}

	// Ownership is checked by the versioner before anything is removed.
	ids, err := s.versioner.ExplicitDelete(ctx, s.location(objectName), ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Remove(ctx, s.bucket, objectName); err != nil {
		logger.Warn("removing object %s: %v", objectName, err)
	}

	result := &driving.DeleteResult{ObjectName: objectName}
	sr := s.syncer.Sync(ctx, nil, ids)
	result.FragmentsDeleted = sr.Deleted
	if sr.DeleteErr != nil {
		return result, fmt.Errorf("purging fragments of %s: %w", objectName, sr.DeleteErr)
	}
	return result, nil
}

// ListFiles returns the markdown objects under ownerID's prefix.
func (s *IngestService) ListFiles(ctx context.Context, ownerID string) ([]string, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	objects, err := s.objects.List(ctx, s.bucket, ownerID+"/", true)
	if err != nil {
		return nil, domain.Dependency("listing objects", err)
	}
	var names []string
	for _, obj := range objects {
		if !obj.IsDir && isMarkdown(obj.Name) {
			names = append(names, obj.Name)
		}
	}
	return names, nil
}

// Status returns the progress of the current or last rebuild.
func (s *IngestService) Status(_ context.Context) *driving.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Return a copy to avoid race conditions
	st := s.status
	return &st
}

// Reingest reconciles and syncs a single object. Used by the watcher.
func (s *IngestService) Reingest(ctx context.Context, objectName string) error {
	if !isMarkdown(objectName) {
		return nil
	}
	owner, ok := domain.OwnerOf(objectName)
	if !ok {
		return nil
	}
	outcome, content, err := s.ingestObject(ctx, owner, objectName)
	if err != nil || outcome == nil {
		return err
	}
	add, restoreErr := s.additions(ctx, outcome, content)
	sr := s.push(ctx, add, outcome)
	return errors.Join(restoreErr, sr.Err())
}

// Forget purges an object that disappeared from the store. Used by the watcher.
func (s *IngestService) Forget(ctx context.Context, objectName string) error {
	owner, ok := domain.OwnerOf(objectName)
	if !ok || !isMarkdown(objectName) {
		return nil
	}
	ids, err := s.versioner.ExplicitDelete(ctx, s.location(objectName), owner)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.syncer.Sync(ctx, nil, ids).DeleteErr
}

// ingestObject reads and reconciles one object and returns its content. A nil
// outcome means the object was empty and skipped.
func (s *IngestService) ingestObject(ctx context.Context, ownerID, objectName string) (*domain.ReconcileOutcome, string, error) {
	rc, err := s.objects.Get(ctx, s.bucket, objectName)
	if err != nil {
		return nil, "", domain.Dependency("reading object", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", domain.Dependency("reading object", err)
	}
	content := string(data)
	outcome, err := s.reconcile(ctx, ownerID, s.location(objectName), content)
	return outcome, content, err
}

// additions returns the fragments an outcome needs added to the index. For an
// unchanged document these are the active fragments the index does not hold,
// rebuilt under their recorded ids.
func (s *IngestService) additions(ctx context.Context, outcome *domain.ReconcileOutcome, content string) ([]domain.Fragment, error) {
	if outcome.Kind != domain.OutcomeUnchanged {
		return outcome.Fragments, nil
	}
	ids, err := outcome.Current.FragmentIDs()
	if err != nil {
		logger.Warn("skipping index check of %s: %v", outcome.Record.SourceLocation, err)
		return nil, nil
	}
	missing, err := s.syncer.Missing(ctx, ids)
	if err != nil || len(missing) == 0 {
		return nil, err
	}

	fragments, err := s.versioner.Restore(ctx, outcome, content, s.pipeline.Process)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(missing))
	for _, id := range missing {
		want[id] = true
	}
	out := make([]domain.Fragment, 0, len(missing))
	for _, f := range fragments {
		if want[f.ID] {
			out = append(out, f)
		}
	}
	logger.Info("restoring %d missing fragments of %s", len(out), outcome.Record.SourceLocation)
	return out, nil
}

// push syncs one document's fragments and forgets retired ids once their
// deletion is confirmed.
func (s *IngestService) push(ctx context.Context, add []domain.Fragment, outcome *domain.ReconcileOutcome) SyncReport {
	sr := s.syncer.Sync(ctx, add, outcome.OrphanedFragmentIDs)
	if sr.DeleteErr == nil {
		if err := s.versioner.ClearRetired(ctx, outcome.RetiredVersionIDs); err != nil {
			logger.Warn("clearing retired fragment ids: %v", err)
		}
	}
	return sr
}

func (s *IngestService) reconcile(ctx context.Context, ownerID, loc, content string) (*domain.ReconcileOutcome, error) {
	if strings.TrimSpace(content) == "" {
		logger.Debug("skipping empty object %s", loc)
		return nil, nil
	}
	return s.versioner.Reconcile(ctx, ReconcileInput{
		SourceLocation: loc,
		OwnerID:        ownerID,
		Content:        content,
	}, s.pipeline.Process)
}

func (s *IngestService) location(objectName string) string {
	return domain.Location{Scheme: s.objects.Scheme(), Bucket: s.bucket, Object: objectName}.String()
}

func (s *IngestService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false
	}
	s.status = driving.SyncStatus{Running: true}
	return true
}

func (s *IngestService) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastRun = time.Now()
}

func (s *IngestService) recordProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.DocumentsProcessed++
}

func (s *IngestService) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.ErrorCount++
}

func isMarkdown(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), markdownExt)
}

func validateOwner(ownerID string) error {
	if ownerID == "" || strings.ContainsAny(ownerID, `/\`) || ownerID == "." || ownerID == ".." {
		return fmt.Errorf("%w: invalid owner %q", domain.ErrValidation, ownerID)
	}
	return nil
}

func validateFileName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	case !isMarkdown(name):
		return fmt.Errorf("%w: only %s files are accepted", domain.ErrValidation, markdownExt)
	case strings.ContainsAny(name, `/\`) || strings.Contains(name, ".."):
		return fmt.Errorf("%w: file name must not contain a path", domain.ErrValidation)
	}
	return nil
}
