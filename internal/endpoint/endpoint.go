// Package endpoint defines the contract every storage backend connector implements.
//
// Architecture:
//
//	Endpoint     - Base contract (ID, Kind, ValidateConfig, Target, Handshake, Descriptor)
//	TableLister  - Optional: backends that can list the tables of a schema
//
// Connectors register a Factory per template ID from init(); callers resolve a
// BackendConfig to a template with TemplateFor and create instances through
// the Registry.
package endpoint

import "context"

// Endpoint is the base contract that ALL backend connectors must implement.
type Endpoint interface {
	// ID returns the unique template identifier (e.g., "gateway.postgrest", "object.minio").
	ID() string

	// Kind returns the backend kind this template serves.
	Kind() Kind

	// ValidateConfig checks that required fields are present and well formed.
	// It performs no network I/O.
	ValidateConfig(ctx context.Context, params map[string]any) (*ValidationResult, error)

	// Target returns the host and the ports the backend declares.
	Target() Target

	// Handshake issues the first protocol-specific request to the backend.
	Handshake(ctx context.Context) ProbeResult

	// GetDescriptor returns metadata about this endpoint type.
	GetDescriptor() *Descriptor

	// Close releases any resources held by the endpoint.
	Close() error
}

// TableLister is implemented by relational backends that can enumerate the
// tables of a schema without a native migration tool.
type TableLister interface {
	ListTables(ctx context.Context, schemaName string) ([]string, error)
}
