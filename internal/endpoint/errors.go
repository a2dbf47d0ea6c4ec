package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

const (
	CodeHostUnreachable     = "E_HOST_UNREACHABLE"
	CodeHostUnresolved      = "E_HOST_UNRESOLVED"
	CodePortClosed          = "E_PORT_CLOSED"
	CodeTimeout             = "E_TIMEOUT"
	CodeHandshakeRejected   = "E_HANDSHAKE_REJECTED"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeConfigInvalid       = "E_CONFIG_INVALID"
	CodeIntrospectionFailed = "E_INTROSPECTION_FAILED"
	CodeUnknown             = "E_UNKNOWN"
)

// Error wraps backend failures with a code and a retryability hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError builds a coded Error.
func WrapError(code string, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// CodeOf returns the code carried by err, classifying plain network errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeHostUnresolved
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return CodePortClosed
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return CodeHostUnreachable
	}
	return CodeUnknown
}
