package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const uriScheme = "gs://"

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// Store reads and writes objects in Google Cloud Storage through one shared
// client. Credentials come from Application Default Credentials unless
// client options say otherwise.
type Store struct {
	client *storage.Client
}

// NewStore creates a Store with its own storage client.
func NewStore(ctx context.Context, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the storage client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Fetch downloads the object at a gs://bucket/object URI.
func (s *Store) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Upload writes data to a gs://bucket/object URI, replacing any existing object.
func (s *Store) Upload(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: write %s: %w", uri, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize %s: %w", uri, err)
	}
	return nil
}

// LazyStore defers creating the storage client until the first Fetch or
// Upload, so a server without Cloud Storage credentials still starts and only
// gs:// requests fail.
type LazyStore struct {
	opts     []option.ClientOption
	newStore func(ctx context.Context, opts ...option.ClientOption) (*Store, error)

	mu    sync.Mutex
	store *Store
	err   error
}

// NewLazyStore returns a LazyStore that will call NewStore with opts.
func NewLazyStore(opts ...option.ClientOption) *LazyStore {
	return &LazyStore{opts: opts, newStore: NewStore}
}

func (l *LazyStore) get(ctx context.Context) (*Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil && l.err == nil {
		// The client outlives the request that happened to create it.
		l.store, l.err = l.newStore(context.WithoutCancel(ctx), l.opts...)
	}
	return l.store, l.err
}

// Fetch implements the same operation as Store.Fetch.
func (l *LazyStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, uri)
}

// Upload implements the same operation as Store.Upload.
func (l *LazyStore) Upload(ctx context.Context, uri string, data []byte, contentType string) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Upload(ctx, uri, data, contentType)
}

// Close releases the client if one was created.
func (l *LazyStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// IsURI reports whether s names a Cloud Storage object.
func IsURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, uriScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// BuildURI joins a bucket and object path into a gs:// URI.
func BuildURI(bucket, object string) string {
	return uriScheme + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ExtractFilename returns the last path element of a GCS URI.
// e.g., "gs://bucket/folder/may.csv" → "may.csv"
func ExtractFilename(uri string) string {
	parts := strings.SplitN(strings.TrimPrefix(uri, uriScheme), "/", 2)
	if len(parts) < 2 {
		return parts[0]
	}
	return path.Base(parts[1])
}
