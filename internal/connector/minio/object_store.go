package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the subset of bucket operations the connector check and
// image persistence need.
type ObjectStore interface {
	Ping(ctx context.Context) error
	EnsureBucket(ctx context.Context, bucket string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

var (
	errNoBucket = errors.New("bucket name is required")
	errNoKey    = errors.New("object key is required")
)

// LocalStore keeps buckets as directories under root. It serves file://
// endpoints and the offline image store.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "provision-objects")
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	dir, err := s.bucketDir(ctx, bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, nil
	}
	dir, err := s.bucketDir(ctx, bucket)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, wrapError(CodeObjectReadFailed, true, err)
	}
	return info.IsDir(), nil
}

func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, data []byte, _ string) error {
	path, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrapError(CodeObjectWriteFailed, true, err)
	}
	return nil
}

func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, wrapError(CodeObjectNotFound, false, fmt.Errorf("%s/%s: %w", bucket, key, err))
	case err != nil:
		return nil, wrapError(CodeObjectReadFailed, true, err)
	}
	return data, nil
}

// DeleteObject succeeds when the object is already gone.
func (s *LocalStore) DeleteObject(ctx context.Context, bucket, key string) error {
	path, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapError(CodeObjectWriteFailed, true, err)
	}
	return nil
}

func (s *LocalStore) bucketDir(ctx context.Context, bucket string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if bucket == "" {
		return "", wrapError(CodeBucketNotFound, false, errNoBucket)
	}
	return filepath.Join(s.root, sanitizePath(bucket)), nil
}

// objectPath maps key into the bucket directory. Keys are rooted before
// cleaning so ".." segments cannot leave the bucket.
func (s *LocalStore) objectPath(ctx context.Context, bucket, key string) (string, error) {
	dir, err := s.bucketDir(ctx, bucket)
	if err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(filepath.Clean("/"+filepath.FromSlash(key)), string(filepath.Separator))
	if rel == "" {
		return "", wrapError(CodeObjectNotFound, false, errNoKey)
	}
	return filepath.Join(dir, rel), nil
}
