// Package minio provides an object store backed by MinIO or any S3-compatible server.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
)

// Scheme is the source location scheme of this store.
const Scheme = "minio"

// markdownContentType is set on uploaded objects.
const markdownContentType = "text/markdown; charset=utf-8"

// Verify interface compliance.
var (
	_ driven.ObjectStore   = (*Store)(nil)
	_ driven.ObjectWatcher = (*Store)(nil)
)

// Config holds connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// Store implements driven.ObjectStore over the MinIO client.
type Store struct {
	client *minio.Client
}

// New creates a store connected to cfg.Endpoint.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is required", domain.ErrInvalidInput)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &Store{client: client}, nil
}

// Scheme returns "minio".
func (s *Store) Scheme() string { return Scheme }

// BucketExists reports whether the bucket exists.
func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	return ok, nil
}

// List returns objects under prefix.
func (s *Store) List(ctx context.Context, bucket, prefix string, recursive bool) ([]driven.ObjectInfo, error) {
	var out []driven.ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return nil, fmt.Errorf("bucket %s: %w", bucket, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("listing %s: %w", bucket, obj.Err)
		}
		out = append(out, driven.ObjectInfo{
			Name:    obj.Key,
			Size:    obj.Size,
			IsDir:   strings.HasSuffix(obj.Key, "/"),
			ModTime: obj.LastModified,
		})
	}
	return out, nil
}

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", bucket, name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting %s/%s: %w", bucket, name, err)
	}
	return obj, nil
}

// Put uploads an object.
func (s *Store) Put(ctx context.Context, bucket, name string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, bucket, name, r, size, minio.PutObjectOptions{
		ContentType: markdownContentType,
	})
	if err != nil {
		return fmt.Errorf("putting %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Remove deletes an object.
func (s *Store) Remove(ctx context.Context, bucket, name string) error {
	if err := s.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return fmt.Errorf("removing %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Watch streams bucket notifications. Requires a server with notification support.
func (s *Store) Watch(ctx context.Context, bucket string) (<-chan driven.ObjectEvent, error) {
	ok, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, domain.ErrNotFound)
	}

	infos := s.client.ListenBucketNotification(ctx, bucket, "", "", []string{
		"s3:ObjectCreated:*",
		"s3:ObjectRemoved:*",
	})

	events := make(chan driven.ObjectEvent, 64)
	go func() {
		defer close(events)
		for info := range infos {
			if info.Err != nil {
				logger.Warn("bucket notification error: %v", info.Err)
				continue
			}
			for _, rec := range info.Records {
				ev, ok := toObjectEvent(rec.EventName, rec.S3.Object.Key)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// toObjectEvent maps an S3 event name and URL-encoded key to an object event.
func toObjectEvent(eventName, key string) (driven.ObjectEvent, bool) {
	name, err := url.QueryUnescape(key)
	if err != nil {
		name = key
	}
	switch {
	case strings.HasPrefix(eventName, "s3:ObjectCreated:"):
		return driven.ObjectEvent{Kind: driven.ObjectWritten, Name: name}, true
	case strings.HasPrefix(eventName, "s3:ObjectRemoved:"):
		return driven.ObjectEvent{Kind: driven.ObjectRemoved, Name: name}, true
	default:
		return driven.ObjectEvent{}, false
	}
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
