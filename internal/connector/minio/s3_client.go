package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// S3Client is the ObjectStore for http(s) endpoints, backed by minio-go.
type S3Client struct {
	client *minio.Client
	region string
	bucket string
}

func NewS3Client(cfg *Config) (*S3Client, error) {
	if cfg == nil || cfg.EndpointURL == "" {
		return nil, wrapError(endpoint.CodeConfigInvalid, false, errors.New("endpointUrl is required"))
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, wrapError(CodeAuthInvalid, false, errors.New("access key and secret key are required"))
	}

	host, secure, err := splitEndpoint(cfg.EndpointURL, cfg.UseSSL)
	if err != nil {
		return nil, wrapError(endpoint.CodeConfigInvalid, false, err)
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError(endpoint.CodeConfigInvalid, false, fmt.Errorf("minio client: %w", err))
	}
	return &S3Client{client: client, region: cfg.Region, bucket: cfg.Bucket}, nil
}

// splitEndpoint turns an endpoint URL into the host minio-go expects. An
// https scheme forces TLS.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Host == "" {
		return raw, useSSL, nil
	}
	return u.Host, useSSL || u.Scheme == "https", nil
}

// Ping issues an authenticated bucket lookup, which fails on bad keys.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return classifyMinioError(err)
}

func (s *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil || exists {
		return err
	}
	if bucket == "" {
		return wrapError(CodeBucketNotFound, false, errNoBucket)
	}
	return classifyMinioError(s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}))
}

func (s *S3Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, classifyMinioError(err)
	}
	return exists, nil
}

func (s *S3Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := requireObject(bucket, key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return classifyMinioError(err)
}

func (s *S3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := requireObject(bucket, key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces NoSuchKey before the read.
	if _, err := obj.Stat(); err != nil {
		return nil, classifyMinioError(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioError(err)
	}
	return data, nil
}

// DeleteObject succeeds when the object is already gone.
func (s *S3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := requireObject(bucket, key); err != nil {
		return err
	}
	err := classifyMinioError(s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
	if endpoint.CodeOf(err) == CodeObjectNotFound {
		return nil
	}
	return err
}

func requireObject(bucket, key string) error {
	if bucket == "" {
		return wrapError(CodeBucketNotFound, false, errNoBucket)
	}
	if key == "" {
		return wrapError(CodeObjectNotFound, false, errNoKey)
	}
	return nil
}

type s3Code struct {
	code      string
	retryable bool
}

var s3Codes = map[string]s3Code{
	"NoSuchBucket":          {CodeBucketNotFound, false},
	"NoSuchKey":             {CodeObjectNotFound, false},
	"AccessDenied":          {CodePermissionDenied, false},
	"InvalidAccessKeyId":    {CodeAuthInvalid, false},
	"SignatureDoesNotMatch": {CodeAuthInvalid, false},
	"SlowDown":              {CodeTimeout, true},
	"RequestTimeout":        {CodeTimeout, true},
}

// classifyMinioError maps S3 error codes and transport failures to coded
// errors.
func classifyMinioError(err error) error {
	if err == nil {
		return nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if c, ok := s3Codes[resp.Code]; ok {
			return wrapError(c.code, c.retryable, err)
		}
	}

	switch code := endpoint.CodeOf(err); code {
	case endpoint.CodeTimeout, endpoint.CodePortClosed, endpoint.CodeHostUnreachable, endpoint.CodeHostUnresolved:
		return wrapError(code, true, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bucket does not exist"):
		return wrapError(CodeBucketNotFound, false, err)
	case strings.Contains(msg, "key does not exist"):
		return wrapError(CodeObjectNotFound, false, err)
	case strings.Contains(msg, "access denied"):
		return wrapError(CodePermissionDenied, false, err)
	}
	return wrapError(CodeObjectReadFailed, true, err)
}
