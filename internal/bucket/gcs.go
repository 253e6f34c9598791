package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/analogtech/cofounder/internal/models"
)

// GCSStore serves a Google Cloud Storage bucket as the library. Credentials
// come from the ambient environment (GOOGLE_APPLICATION_CREDENTIALS or
// workload identity).
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStore connects to the named bucket. prefix (optional) scopes all
// operations to a folder; object names exposed by the store have the prefix
// stripped.
func NewGCSStore(ctx context.Context, bucketName, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucketName),
		prefix: prefix,
	}, nil
}

func (s *GCSStore) List(ctx context.Context) ([]models.Object, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})
	var objects []models.Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bucket: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		objects = append(objects, models.Object{
			Name:    name,
			Size:    attrs.Size,
			Updated: attrs.Updated,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *GCSStore) Download(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bucket.Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return content, nil
}

func (s *GCSStore) Upload(ctx context.Context, name string, content []byte, contentType string) error {
	w := s.bucket.Object(s.prefix + name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Object(s.prefix + name).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.bucket.Object(s.prefix + name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

func (s *GCSStore) Close() error { return s.client.Close() }
