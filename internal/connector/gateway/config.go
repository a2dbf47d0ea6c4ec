package gateway

import (
	"net"
	"strconv"

	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

const (
	defaultPort              = 5432
	defaultGatewayPort       = 3000
	defaultSchema            = "public"
	defaultIntrospectionPath = "/"
)

// Config captures the gateway.postgrest endpoint configuration.
type Config struct {
	Host              string
	Port              int
	GatewayPort       int
	Database          string
	Username          string
	Password          string
	Schema            string
	UseTLS            bool
	Token             string
	IntrospectionPath string
}

// ParseConfig builds a Config from loose parameters.
func ParseConfig(params map[string]any) *Config {
	cfg := &Config{
		Host:              endpoint.FirstString(params, "host", "hostname"),
		Port:              endpoint.FirstInt(params, defaultPort, "port"),
		GatewayPort:       endpoint.FirstInt(params, defaultGatewayPort, "gatewayPort", "gateway_port"),
		Database:          endpoint.FirstString(params, "database", "dbname"),
		Username:          endpoint.FirstString(params, "username", "user"),
		Password:          endpoint.FirstString(params, "password"),
		Schema:            endpoint.FirstString(params, "schema"),
		UseTLS:            endpoint.FirstBool(params, false, "useTLS", "use_tls", "ssl"),
		Token:             endpoint.FirstString(params, "token", "jwt"),
		IntrospectionPath: endpoint.FirstString(params, "introspectionPath"),
	}
	if cfg.Schema == "" {
		cfg.Schema = defaultSchema
	}
	if cfg.IntrospectionPath == "" {
		cfg.IntrospectionPath = defaultIntrospectionPath
	}
	return cfg
}

// BaseURL is the gateway root derived from host, gateway port and TLS flag.
func (c *Config) BaseURL() string {
	return uclhttp.SchemeFor(c.UseTLS) + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.GatewayPort))
}

// Validate checks field syntax; required-field presence is checked from the descriptor.
func (c *Config) Validate() *endpoint.ValidationResult {
	checks := []struct {
		field string
		res   credentials.Result
	}{
		{"host", credentials.ValidateHostname(c.Host)},
		{"port", credentials.ValidatePort(strconv.Itoa(c.Port))},
		{"gatewayPort", credentials.ValidatePort(strconv.Itoa(c.GatewayPort))},
		{"database", credentials.ValidateDatabaseName("postgres", c.Database)},
		{"username", credentials.ValidateUsername("postgres", c.Username)},
		{"schema", credentials.ValidateDatabaseName("postgres", c.Schema)},
	}
	for _, check := range checks {
		if !check.res.IsValid {
			return &endpoint.ValidationResult{
				Valid:   false,
				Message: check.field + ": " + check.res.Message,
				Code:    endpoint.CodeConfigInvalid,
			}
		}
	}
	return &endpoint.ValidationResult{Valid: true, Message: "connection parameters look valid"}
}
