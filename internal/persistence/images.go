package persistence

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/nucleus/provision-core/internal/connector/minio"
	"github.com/nucleus/provision-core/internal/endpoint"
)

const imagePrefix = "images/"

// Images stores image blobs in an object store bucket under images/.
type Images struct {
	store  minio.ObjectStore
	bucket string
}

// NewImages returns an image store over store and bucket.
func NewImages(store minio.ObjectStore, bucket string) *Images {
	return &Images{store: store, bucket: bucket}
}

func imageKey(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if strings.HasPrefix(p, imagePrefix) {
		return p
	}
	return imagePrefix + p
}

// LoadImage returns the blob at p, or nil when it does not exist.
func (i *Images) LoadImage(ctx context.Context, p string) ([]byte, error) {
	data, err := i.store.GetObject(ctx, i.bucket, imageKey(p))
	if err != nil {
		if endpoint.CodeOf(err) == endpoint.CodeObjectNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load image %s: %w", p, err)
	}
	return data, nil
}

// SaveImage writes data to p, creating the bucket on first use.
func (i *Images) SaveImage(ctx context.Context, p string, data []byte) error {
	if err := i.store.EnsureBucket(ctx, i.bucket); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", i.bucket, err)
	}
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := i.store.PutObject(ctx, i.bucket, imageKey(p), data, contentType); err != nil {
		return fmt.Errorf("save image %s: %w", p, err)
	}
	return nil
}

// DeleteImage removes p. Deleting a missing image is not an error.
func (i *Images) DeleteImage(ctx context.Context, p string) error {
	if err := i.store.DeleteObject(ctx, i.bucket, imageKey(p)); err != nil {
		if endpoint.CodeOf(err) == endpoint.CodeObjectNotFound {
			return nil
		}
		return fmt.Errorf("delete image %s: %w", p, err)
	}
	return nil
}
