// Package gateway implements the relational-gateway connector: a relational
// database whose tables are exposed as REST resources by an HTTP gateway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/endpoint"
)

// TemplateID is the registry key of this connector.
const TemplateID = "gateway.postgrest"

// aliveStatuses are the handshake statuses proving the gateway runs. 404 and
// 405 come back from gateways that expose no root resource.
var aliveStatuses = uclhttp.AliveStatuses{Any2xx: true, Codes: []int{http.StatusNotFound, http.StatusMethodNotAllowed}}

// Endpoint implements the gateway.postgrest connector.
type Endpoint struct {
	*uclhttp.Base
	config *Config
}

// New creates a gateway endpoint from raw parameters.
func New(params map[string]any) (*Endpoint, error) {
	cfg := ParseConfig(params)
	var auth uclhttp.AuthConfig = uclhttp.NoAuth{}
	if cfg.Token != "" {
		auth = uclhttp.BearerToken{Token: cfg.Token}
	}
	base := uclhttp.NewBase(TemplateID, endpoint.KindRelationalGateway, &uclhttp.ClientConfig{
		BaseURL:    cfg.BaseURL(),
		Auth:       auth,
		MaxRetries: -1,
	})
	return &Endpoint{Base: base, config: cfg}, nil
}

// Config returns the parsed configuration.
func (e *Endpoint) Config() *Config { return e.config }

// GetDescriptor describes the gateway endpoint template.
func (e *Endpoint) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          TemplateID,
		Kind:        endpoint.KindRelationalGateway,
		Title:       "PostgreSQL via REST gateway",
		Vendor:      "PostgREST",
		Description: "Relational database reachable through a REST gateway used for introspection and record storage",
		Protocols:   []string{"HTTP", "PostgreSQL"},
		DefaultPort: defaultPort,
		DocsURL:     "https://postgrest.org",
		Fields: []*endpoint.FieldDescriptor{
			{Key: "host", Aliases: []string{"hostname"}, Label: "Host", ValueType: "string", Required: true, Semantic: "HOST", Placeholder: "localhost"},
			{Key: "port", Label: "Database Port", ValueType: "integer", Required: true, Semantic: "PORT", DefaultValue: "5432"},
			{Key: "gatewayPort", Aliases: []string{"gateway_port"}, Label: "Gateway Port", ValueType: "integer", Semantic: "PORT", DefaultValue: "3000"},
			{Key: "database", Aliases: []string{"dbname"}, Label: "Database", ValueType: "string", Required: true, Semantic: "GENERIC"},
			{Key: "username", Aliases: []string{"user"}, Label: "Username", ValueType: "string", Required: true, Semantic: "GENERIC"},
			{Key: "password", Label: "Password", ValueType: "password", Required: true, Semantic: "PASSWORD", Sensitive: true},
			{Key: "schema", Label: "Schema", ValueType: "string", Semantic: "GENERIC", DefaultValue: defaultSchema, Advanced: true},
			{Key: "token", Aliases: []string{"jwt"}, Label: "Gateway Token", ValueType: "password", Semantic: "PASSWORD", Sensitive: true, Advanced: true},
			{Key: "useTLS", Aliases: []string{"use_tls", "ssl"}, Label: "Use TLS", ValueType: "boolean", DefaultValue: "false"},
		},
		SampleConfig: map[string]any{
			"host":        "localhost",
			"port":        defaultPort,
			"gatewayPort": defaultGatewayPort,
			"database":    "postgres",
			"username":    "postgres",
			"schema":      defaultSchema,
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

// Target declares the database port and the gateway's own port.
func (e *Endpoint) Target() endpoint.Target {
	return endpoint.Target{
		Host: e.config.Host,
		Ports: []endpoint.Port{
			{Number: e.config.Port, Label: "database"},
			{Number: e.config.GatewayPort, Label: "gateway"},
		},
	}
}

// Handshake issues a GET against the introspection route.
func (e *Endpoint) Handshake(ctx context.Context) endpoint.ProbeResult {
	return e.StatusHandshake(ctx, &uclhttp.Request{Method: http.MethodGet, Path: e.config.IntrospectionPath}, aliveStatuses)
}

// openAPIDocument is the subset of the gateway's root document we read.
type openAPIDocument struct {
	Paths       map[string]any `json:"paths"`
	Definitions map[string]any `json:"definitions"`
}

// ListTables reads the gateway's OpenAPI root document scoped to schemaName
// and returns the exposed table names.
func (e *Endpoint) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	if schemaName == "" {
		schemaName = e.config.Schema
	}
	resp, err := e.Client.Get(ctx, e.config.IntrospectionPath, nil, map[string]string{
		"Accept":         "application/openapi+json, application/json",
		"Accept-Profile": schemaName,
	})
	if err != nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, true, err)
	}

	return TablesFromOpenAPI(resp.Body)
}

// TablesFromOpenAPI extracts table names from a gateway's OpenAPI root
// document. Function routes under /rpc/ are skipped; the definitions section
// is used when the document lists no paths.
func TablesFromOpenAPI(data []byte) ([]string, error) {
	var doc openAPIDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, false,
			fmt.Errorf("decode introspection document: %w", err))
	}
	if doc.Paths == nil && doc.Definitions == nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, false,
			fmt.Errorf("introspection document has neither paths nor definitions"))
	}

	seen := map[string]bool{}
	for path := range doc.Paths {
		name := strings.Trim(path, "/")
		if name == "" || strings.HasPrefix(name, "rpc/") || strings.Contains(name, "/") {
			continue
		}
		seen[name] = true
	}
	if len(seen) == 0 {
		for name := range doc.Definitions {
			seen[name] = true
		}
	}

	tables := make([]string, 0, len(seen))
	for name := range seen {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

var (
	_ endpoint.Endpoint    = (*Endpoint)(nil)
	_ endpoint.TableLister = (*Endpoint)(nil)
)
