// Package hosted implements the hosted-platform connector: a managed
// database platform exposing its tables through an authenticated REST root.
package hosted

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nucleus/provision-core/internal/connector/gateway"
	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

// TemplateID is the registry key of this connector.
const TemplateID = "hosted.supabase"

const restRoot = "/rest/v1/"

// Config captures the hosted.supabase endpoint configuration.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Schema     string
}

// ParseConfig builds a Config from loose parameters.
func ParseConfig(params map[string]any) *Config {
	cfg := &Config{
		URL:        strings.TrimSuffix(endpoint.FirstString(params, "url", "platformUrl", "projectUrl"), "/"),
		AnonKey:    endpoint.FirstString(params, "anonKey", "anon_key", "apiKey"),
		ServiceKey: endpoint.FirstString(params, "serviceKey", "service_key"),
		Schema:     endpoint.FirstString(params, "schema"),
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	return cfg
}

// Key returns the key used for requests; the service key wins when set.
func (c *Config) Key() string {
	if c.ServiceKey != "" {
		return c.ServiceKey
	}
	return c.AnonKey
}

// Endpoint implements the hosted.supabase connector.
type Endpoint struct {
	*uclhttp.Base
	config *Config
}

// New creates a hosted platform endpoint from raw parameters.
func New(params map[string]any) (*Endpoint, error) {
	cfg := ParseConfig(params)
	base := uclhttp.NewBase(TemplateID, endpoint.KindHostedPlatform, &uclhttp.ClientConfig{
		BaseURL:    cfg.URL,
		Auth:       uclhttp.PlatformKey{Key: cfg.Key()},
		MaxRetries: -1,
	})
	return &Endpoint{Base: base, config: cfg}, nil
}

// Config returns the parsed configuration.
func (e *Endpoint) Config() *Config { return e.config }

// GetDescriptor describes the hosted platform endpoint template.
func (e *Endpoint) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          TemplateID,
		Kind:        endpoint.KindHostedPlatform,
		Title:       "Supabase",
		Vendor:      "Supabase",
		Description: "Hosted PostgreSQL platform with a REST layer authenticated by project API keys",
		Protocols:   []string{"HTTPS"},
		DefaultPort: 443,
		DocsURL:     "https://supabase.com/docs/guides/api",
		Fields: []*endpoint.FieldDescriptor{
			{Key: "url", Aliases: []string{"platformUrl", "projectUrl"}, Label: "Project URL", ValueType: "string", Required: true, Semantic: "URL", Placeholder: "https://<project>.supabase.co"},
			{Key: "anonKey", Aliases: []string{"anon_key", "apiKey"}, Label: "Anon Key", ValueType: "password", Required: true, Semantic: "PASSWORD", Sensitive: true},
			{Key: "serviceKey", Aliases: []string{"service_key"}, Label: "Service Role Key", ValueType: "password", Semantic: "PASSWORD", Sensitive: true, Advanced: true},
			{Key: "schema", Label: "Schema", ValueType: "string", DefaultValue: "public", Advanced: true},
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
	cfg := ParseConfig(params)
	if res := credentials.ValidateURL(cfg.URL); !res.IsValid {
		return &endpoint.ValidationResult{Valid: false, Message: "url: " + res.Message, Code: endpoint.CodeConfigInvalid}, nil
	}
	if res := credentials.ValidateAPIKey(cfg.AnonKey); !res.IsValid {
		return &endpoint.ValidationResult{Valid: false, Message: "anonKey: " + res.Message, Code: endpoint.CodeAuthInvalid}, nil
	}
	if cfg.ServiceKey != "" {
		if res := credentials.ValidateAPIKey(cfg.ServiceKey); !res.IsValid {
			return &endpoint.ValidationResult{Valid: false, Message: "serviceKey: " + res.Message, Code: endpoint.CodeAuthInvalid}, nil
		}
	}
	return &endpoint.ValidationResult{Valid: true, Message: "connection parameters look valid"}, nil
}

// Target declares the platform host and its HTTPS (or explicit) port.
func (e *Endpoint) Target() endpoint.Target {
	u, err := url.Parse(e.config.URL)
	if err != nil || u.Hostname() == "" {
		return endpoint.Target{}
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		port = 443
		if u.Scheme == "http" {
			port = 80
		}
	}
	return endpoint.Target{Host: u.Hostname(), Ports: []endpoint.Port{{Number: port, Label: "platform"}}}
}

// Handshake issues an authenticated GET against the REST root; only 2xx
// proves both liveness and a usable key.
func (e *Endpoint) Handshake(ctx context.Context) endpoint.ProbeResult {
	return e.StatusHandshake(ctx, &uclhttp.Request{Method: http.MethodGet, Path: restRoot}, uclhttp.AliveStatuses{Any2xx: true})
}

// ListTables reads the REST root's OpenAPI document for schemaName.
func (e *Endpoint) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	if schemaName == "" {
		schemaName = e.config.Schema
	}
	resp, err := e.Client.Get(ctx, restRoot, nil, map[string]string{
		"Accept":         "application/openapi+json, application/json",
		"Accept-Profile": schemaName,
	})
	if err != nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, true, err)
	}
	return gateway.TablesFromOpenAPI(resp.Body)
}

var (
	_ endpoint.Endpoint    = (*Endpoint)(nil)
	_ endpoint.TableLister = (*Endpoint)(nil)
)
