// Package minio implements the object-store connector on top of minio-go,
// with a filesystem-backed store for file:// endpoints.
package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/endpoint"
)

// TemplateID is the registry key of this connector.
const TemplateID = "object.minio"

// aliveStatuses prove an S3-compatible server is running: an anonymous HEAD
// on the root is typically answered with 400, 403 or 405.
var aliveStatuses = uclhttp.AliveStatuses{
	Any2xx: true,
	Codes:  []int{http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed},
}

// Endpoint implements the object.minio connector.
type Endpoint struct {
	*uclhttp.Base
	config   *Config
	store    ObjectStore
	storeErr error
}

// New creates a MinIO endpoint from raw parameters.
// http/https endpoints get an S3 client; file:// endpoints a LocalStore.
func New(params map[string]any) (*Endpoint, error) {
	cfg := ParseConfig(params)

	var store ObjectStore
	var storeErr error
	if cfg.IsLocal() {
		store = NewLocalStore(cfg.objectRoot())
	} else if cfg.EndpointURL != "" {
		var client *S3Client
		if client, storeErr = NewS3Client(cfg); storeErr == nil {
			store = client
		}
	} else {
		storeErr = wrapError(endpoint.CodeConfigInvalid, false, errors.New("endpointUrl is required"))
	}

	base := uclhttp.NewBase(TemplateID, endpoint.KindObjectStore, &uclhttp.ClientConfig{
		BaseURL:    cfg.EndpointURL,
		MaxRetries: -1,
	})
	return &Endpoint{Base: base, config: cfg, store: store, storeErr: storeErr}, nil
}

// NewWithStore creates an endpoint over an existing ObjectStore.
func NewWithStore(params map[string]any, store ObjectStore) *Endpoint {
	ep, _ := New(params)
	ep.store = store
	ep.storeErr = nil
	return ep
}

// Config returns the parsed configuration.
func (e *Endpoint) Config() *Config { return e.config }

// Store returns the object store, or the reason it could not be created.
func (e *Endpoint) Store() (ObjectStore, error) {
	if e.store == nil {
		return nil, e.storeErr
	}
	return e.store, nil
}

// GetDescriptor describes the MinIO endpoint template.
func (e *Endpoint) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          TemplateID,
		Kind:        endpoint.KindObjectStore,
		Title:       "MinIO Object Store",
		Vendor:      "MinIO",
		Description: "S3-compatible object store holding article and recipe images",
		Protocols:   []string{"S3", "HTTP"},
		DefaultPort: defaultPort,
		Driver:      "minio",
		DocsURL:     "https://min.io/docs/minio/container/index.html",
		Fields: []*endpoint.FieldDescriptor{
			{Key: "endpointUrl", Aliases: []string{"endpoint_url", "endpoint", "url", "host"}, Label: "Endpoint URL", ValueType: "string", Required: true, Semantic: "URL", Placeholder: "http://localhost:9000"},
			{Key: "region", Label: "Region", ValueType: "string", Semantic: "GENERIC", Advanced: true},
			{Key: "useSSL", Aliases: []string{"use_ssl", "useTLS"}, Label: "Use SSL", ValueType: "boolean", DefaultValue: "false"},
			{Key: "accessKeyId", Aliases: []string{"access_key_id", "accessKey"}, Label: "Access Key ID", ValueType: "string", Required: true, Semantic: "GENERIC"},
			{Key: "secretAccessKey", Aliases: []string{"secret_access_key", "secretKey"}, Label: "Secret Access Key", ValueType: "password", Required: true, Semantic: "PASSWORD", Sensitive: true},
			{Key: "bucket", Label: "Bucket", ValueType: "string", Required: true, Semantic: "GENERIC", DefaultValue: defaultBucket},
			{Key: "verifyBucket", Label: "Verify bucket on test", ValueType: "boolean", DefaultValue: "false", Advanced: true},
		},
		SampleConfig: map[string]any{
			"endpointUrl":     "http://localhost:9000",
			"accessKeyId":     "minioadmin",
			"secretAccessKey": "minioadmin",
			"bucket":          defaultBucket,
		},
	}
}

// ValidateConfig checks required fields and their syntax without network I/O.
func (e *Endpoint) ValidateConfig(ctx context.Context, params map[string]any) (*endpoint.ValidationResult, error) {
	if missing := endpoint.MissingRequired(e.GetDescriptor(), params); len(missing) > 0 {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: "missing required fields: " + strings.Join(missing, ", "),
			Code:    endpoint.CodeConfigInvalid,
			Missing: missing,
		}, nil
	}
	return ParseConfig(params).Validate(), nil
}

// Target declares the endpoint's host and port. file:// stores live on the
// local machine and declare no ports.
func (e *Endpoint) Target() endpoint.Target {
	if e.config.IsLocal() {
		return endpoint.Target{Host: "localhost"}
	}
	host, port := e.config.HostPort()
	return endpoint.Target{Host: host, Ports: []endpoint.Port{{Number: port, Label: "object store"}}}
}

// Handshake sends an anonymous HEAD to the endpoint root. With verifyBucket
// set, a successful handshake is followed by a bucket lookup whose outcome
// is reported as a note and never changes the verdict.
func (e *Endpoint) Handshake(ctx context.Context) endpoint.ProbeResult {
	if e.config.IsLocal() {
		return e.localHandshake(ctx)
	}

	res := e.StatusHandshake(ctx, &uclhttp.Request{Method: http.MethodHead, Path: "/"}, aliveStatuses)
	if !res.Success || !e.config.VerifyBucket {
		return res
	}
	res.Message += "; " + e.bucketNote(ctx)
	return res
}

func (e *Endpoint) localHandshake(ctx context.Context) endpoint.ProbeResult {
	start := time.Now()
	if err := e.store.Ping(ctx); err != nil {
		return endpoint.Failed(endpoint.CodeOf(err), fmt.Sprintf("Local object store unavailable: %v", err), time.Since(start))
	}
	return endpoint.Succeeded("Connection successful: local object store at "+e.config.objectRoot(), time.Since(start))
}

func (e *Endpoint) bucketNote(ctx context.Context) string {
	store, err := e.Store()
	if err != nil {
		return fmt.Sprintf("bucket not checked: %v", err)
	}
	exists, err := store.BucketExists(ctx, e.config.Bucket)
	switch {
	case err != nil:
		return fmt.Sprintf("bucket %q could not be checked: %v", e.config.Bucket, err)
	case !exists:
		return fmt.Sprintf("bucket %q does not exist yet", e.config.Bucket)
	}
	return fmt.Sprintf("bucket %q exists", e.config.Bucket)
}

var _ endpoint.Endpoint = (*Endpoint)(nil)
