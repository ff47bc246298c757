package driving

import (
	"context"
	"time"
)

// IngestService keeps the document store and vector index in step with the object store.
type IngestService interface {
	// Rebuild scans the whole bucket and synchronises the index once.
	Rebuild(ctx context.Context) (*RebuildReport, error)

	// Upload stores a markdown file for an owner and indexes it.
	Upload(ctx context.Context, ownerID, fileName string, content []byte) (*UploadResult, error)

	// Delete removes an owner's object and purges every fragment it produced.
	Delete(ctx context.Context, ownerID, objectName string) (*DeleteResult, error)

	// ListFiles returns the markdown object names under an owner's prefix.
	ListFiles(ctx context.Context, ownerID string) ([]string, error)

	// Status returns the progress of the current or last rebuild.
	Status(ctx context.Context) *SyncStatus
}

// SyncStatus represents the current state of a rebuild.
type SyncStatus struct {
	// Running indicates if a rebuild is currently in progress.
	Running bool

	// DocumentsProcessed is the count of documents processed.
	DocumentsProcessed int

	// ErrorCount is the number of errors encountered.
	ErrorCount int

	// LastRun is when the last rebuild finished.
	LastRun time.Time
}

// RebuildReport summarises one full scan.
type RebuildReport struct {
	Scanned   int
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int

	FragmentsAdded   int
	FragmentsDeleted int

	// Restored counts fragments of unchanged documents sent back to the index
	// because it had lost them. Successful ones are included in FragmentsAdded.
	Restored int

	// AddErr and DeleteErr are reported independently.
	AddErr    error
	DeleteErr error
}

// UploadResult describes the outcome of one upload.
type UploadResult struct {
	ObjectName     string
	SourceLocation string
	Status         string
	VersionNumber  int
	Fragments      int
	Orphans        int
}

// DeleteResult describes the outcome of one delete.
type DeleteResult struct {
	ObjectName       string
	FragmentsDeleted int
}

// WatchService re-ingests objects as the object store reports changes.
type WatchService interface {
	// Run blocks until ctx is cancelled or the event stream ends.
	// report, if non-nil, is called after each handled event.
	Run(ctx context.Context, report func(WatchEvent)) error
}

// WatchEvent is the outcome of handling one change notification.
type WatchEvent struct {
	ObjectName string
	Removed    bool
	Err        error
}
