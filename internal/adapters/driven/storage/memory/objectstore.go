package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// Ensure ObjectStore implements the interface.
var _ driven.ObjectStore = (*ObjectStore)(nil)

// ObjectStore is an in-memory implementation of driven.ObjectStore.
type ObjectStore struct {
	mu      sync.RWMutex
	scheme  string
	buckets map[string]map[string]storedObject
}

type storedObject struct {
	data    []byte
	modTime time.Time
}

// NewObjectStore creates an object store with the given buckets.
func NewObjectStore(scheme string, buckets ...string) *ObjectStore {
	s := &ObjectStore{
		scheme:  scheme,
		buckets: make(map[string]map[string]storedObject),
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]storedObject)
	}
	return s
}

// Scheme returns the source location scheme.
func (s *ObjectStore) Scheme() string { return s.scheme }

// BucketExists reports whether the bucket exists.
func (s *ObjectStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

// List returns objects under prefix in name order.
func (s *ObjectStore) List(_ context.Context, bucket, prefix string, recursive bool) ([]driven.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, domain.ErrNotFound)
	}

	dirs := make(map[string]bool)
	var out []driven.ObjectInfo
	for name, obj := range objs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if !recursive {
			if i := strings.Index(rest, "/"); i >= 0 {
				dir := prefix + rest[:i+1]
				if !dirs[dir] {
					dirs[dir] = true
					out = append(out, driven.ObjectInfo{Name: dir, IsDir: true})
				}
				continue
			}
		}
		out = append(out, driven.ObjectInfo{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get opens an object for reading.
func (s *ObjectStore) Get(_ context.Context, bucket, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[bucket][name]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, name, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put writes an object, creating the bucket on first use.
func (s *ObjectStore) Put(_ context.Context, bucket, name string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]storedObject)
	}
	s.buckets[bucket][name] = storedObject{data: data, modTime: time.Now()}
	return nil
}

// Remove deletes an object.
func (s *ObjectStore) Remove(_ context.Context, bucket, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets[bucket], name)
	return nil
}
