package driven

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one entry in a bucket listing.
type ObjectInfo struct {
	// Name is the object name relative to the bucket (e.g. "alice/soup/tomato.md").
	Name string

	// Size is the object size in bytes.
	Size int64

	// IsDir is true for directory placeholders.
	IsDir bool

	// ModTime is the last modification time, if known.
	ModTime time.Time
}

// ObjectStore is the blob store recipe documents are read from.
// Implementations rely on their own timeout and retry policy.
type ObjectStore interface {
	// Scheme returns the scheme used in source locations (e.g. "minio", "file").
	Scheme() string

	// BucketExists reports whether the bucket exists.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// List returns objects under prefix. Recursive descends into sub-paths.
	List(ctx context.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error)

	// Get opens an object for reading. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, bucket, name string) (io.ReadCloser, error)

	// Put writes an object, replacing any existing one.
	Put(ctx context.Context, bucket, name string, r io.Reader, size int64) error

	// Remove deletes an object. Removing an absent object is not an error.
	Remove(ctx context.Context, bucket, name string) error
}

// ObjectEventKind is the kind of change a watcher observed.
type ObjectEventKind string

const (
	// ObjectWritten means an object was created or modified.
	ObjectWritten ObjectEventKind = "written"

	// ObjectRemoved means an object was deleted or renamed away.
	ObjectRemoved ObjectEventKind = "removed"
)

// ObjectEvent is a change notification for one object.
type ObjectEvent struct {
	Kind ObjectEventKind
	Name string
}

// ObjectWatcher is implemented by object stores that can push change events.
type ObjectWatcher interface {
	// Watch streams events for bucket. The channel closes when ctx is cancelled.
	Watch(ctx context.Context, bucket string) (<-chan ObjectEvent, error)
}
