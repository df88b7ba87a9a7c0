package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"meteoswiss-forecast/logger"
)

// GCSType is the type name of the Cloud Storage backend
const GCSType = "gcs"

// GCSStore keeps artifacts as objects in a bucket, optionally below a prefix
type GCSStore struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	prefix string
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to the configured bucket. Without a credentials
// file the application default credentials are used.
func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs storage: bucket must be specified")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *GCSStore) object(name string) *gcs.ObjectHandle {
	return s.bucket.Object(path.Join(s.prefix, name))
}

// Type returns "gcs"
func (s *GCSStore) Type() string {
	return GCSType
}

// Close releases the client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Put uploads an artifact; the object only becomes visible once the writer is closed
func (s *GCSStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	w := s.object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	logger.Debugf("Uploaded gs://%s/%s (%d bytes)", s.name, path.Join(s.prefix, name), len(data))
	return nil
}

// Get downloads an artifact
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	return data, nil
}

// ModTime returns the update time of the object
func (s *GCSStore) ModTime(ctx context.Context, name string) (time.Time, error) {
	attrs, err := s.object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read attributes of %s: %w", name, err)
	}
	return attrs.Updated, nil
}

// Delete removes an object; a missing object is not an error
func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// List calls fn for every object below the store prefix starting with prefix
func (s *GCSStore) List(ctx context.Context, prefix string, fn func(name string) error) error {
	base := ""
	if s.prefix != "" {
		base = s.prefix + "/"
	}
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: base + prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list gs://%s/%s: %w", s.name, base+prefix, err)
		}
		if err := fn(strings.TrimPrefix(attrs.Name, base)); err != nil {
			return err
		}
	}
}
