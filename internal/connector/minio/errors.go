package minio

import "github.com/nucleus/provision-core/internal/endpoint"

const (
	CodeEndpointUnreachable = endpoint.CodeHostUnreachable
	CodeAuthInvalid         = endpoint.CodeAuthInvalid
	CodeBucketNotFound      = endpoint.CodeBucketNotFound
	CodeObjectNotFound      = endpoint.CodeObjectNotFound
	CodePermissionDenied    = endpoint.CodePermissionDenied
	CodeTimeout             = endpoint.CodeTimeout
	CodeObjectWriteFailed   = "E_OBJECT_WRITE_FAILED"
	CodeObjectReadFailed    = "E_OBJECT_READ_FAILED"
)

// Error is the coded error type shared with the other connectors.
type Error = endpoint.Error

func wrapError(code string, retryable bool, err error) *Error {
	return endpoint.WrapError(code, retryable, err)
}
