package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/kirillkom/textify/internal/core/domain"
)

// Storage keeps export artifacts in a Cloud Storage bucket.
type Storage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func New(ctx context.Context, bucket, prefix string) (*Storage, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Storage{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Save writes the object only if it does not exist yet; export keys are unique.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	writer := s.bucket.Object(s.objectName(key)).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write gcs object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize gcs object: %w", err)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.bucket.Object(s.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.WrapError(domain.ErrExportNotFound, "open gcs object", err)
		}
		return nil, fmt.Errorf("open gcs object: %w", err)
	}
	return reader, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(s.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
