// Package filesystem provides an object store over a local directory tree.
//
// Each bucket is a directory directly under the root; object names are
// slash-separated paths relative to the bucket directory. Hidden files and
// directories are never listed or watched.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
)

// Scheme is the source location scheme of this store.
const Scheme = "file"

// Verify interface compliance.
var (
	_ driven.ObjectStore   = (*Store)(nil)
	_ driven.ObjectWatcher = (*Store)(nil)
)

// Store is a directory-backed object store.
type Store struct {
	root string

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// Scheme returns "file".
func (s *Store) Scheme() string { return Scheme }

// BucketExists reports whether the bucket directory exists.
func (s *Store) BucketExists(_ context.Context, bucket string) (bool, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// List returns objects under prefix in name order.
func (s *Store) List(ctx context.Context, bucket, prefix string, recursive bool) ([]driven.ObjectInfo, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}

	var out []driven.ObjectInfo
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("bucket %s: %w", bucket, domain.ErrNotFound)
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == dir {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			dirName := name + "/"
			switch {
			case recursive, strings.HasPrefix(prefix, dirName):
				return nil
			case strings.HasPrefix(dirName, prefix):
				out = append(out, driven.ObjectInfo{Name: dirName, IsDir: true})
			}
			return filepath.SkipDir
		}
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		if !recursive && strings.Contains(strings.TrimPrefix(name, prefix), "/") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, driven.ObjectInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get opens an object for reading.
func (s *Store) Get(_ context.Context, bucket, name string) (io.ReadCloser, error) {
	path, err := s.objectPath(bucket, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, name, domain.ErrNotFound)
	}
	return f, err
}

// Put writes an object atomically via a temporary file.
func (s *Store) Put(_ context.Context, bucket, name string, r io.Reader, _ int64) error {
	path, err := s.objectPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing object: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Remove deletes an object. Absent objects are not an error.
func (s *Store) Remove(_ context.Context, bucket, name string) error {
	path, err := s.objectPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Watch streams changes under the bucket directory, including directories
// created after the watch started.
func (s *Store) Watch(ctx context.Context, bucket string) (<-chan driven.ObjectEvent, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("object store is closed")
	}
	s.mu.Unlock()

	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("bucket %s: %w", bucket, domain.ErrNotFound)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := addTree(watcher, dir); err != nil {
		watcher.Close()
		return nil, err
	}

	s.mu.Lock()
	s.watchers = append(s.watchers, watcher)
	s.mu.Unlock()

	events := make(chan driven.ObjectEvent, 64)
	go func() {
		defer close(events)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !isHidden(filepath.Base(ev.Name)) {
						if err := addTree(watcher, ev.Name); err != nil {
							logger.Warn("watching %s: %v", ev.Name, err)
						}
					}
				}
				change := handleFsEvent(dir, ev)
				if change == nil {
					continue
				}
				select {
				case events <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error: %v", err)
			}
		}
	}()
	return events, nil
}

// Close stops all watchers.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	for _, w := range s.watchers {
		errs = append(errs, w.Close())
	}
	s.watchers = nil
	return errors.Join(errs...)
}

// handleFsEvent maps a raw event to an object event. Directories, hidden
// paths and attribute changes yield nil.
func handleFsEvent(bucketDir string, ev fsnotify.Event) *driven.ObjectEvent {
	rel, err := filepath.Rel(bucketDir, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	name := filepath.ToSlash(rel)
	if isHidden(name) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &driven.ObjectEvent{Kind: driven.ObjectRemoved, Name: name}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return nil
		}
		return &driven.ObjectEvent{Kind: driven.ObjectWritten, Name: name}
	default:
		return nil
	}
}

// addTree watches dir and every non-hidden directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether any element of a slash path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

func (s *Store) bucketDir(bucket string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: invalid bucket %q", domain.ErrInvalidInput, bucket)
	}
	return filepath.Join(s.root, bucket), nil
}

func (s *Store) objectPath(bucket, name string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: invalid object name %q", domain.ErrInvalidInput, name)
	}
	return filepath.Join(dir, clean), nil
}
