// Package jdbc implements the relational-direct connectors, which talk to
// the database with its native driver.
//
// Architecture:
//
//	Base      - database/sql connector shared by all drivers
//	postgres  - pgx stdlib driver, information_schema scoped by schema
//	mysql     - go-sql-driver, information_schema scoped by database
package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

// Base implements the direct relational connector.
type Base struct {
	Config *Config
	DB     *sql.DB
}

// NewBase creates a connector for driver. sql.Open does not connect; the
// first network round-trip happens in Handshake.
func NewBase(driver string, params map[string]any) (*Base, error) {
	cfg := ParseConfig(driver, params)

	db, err := sql.Open(cfg.SQLDriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verification needs at most a couple of connections.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Minute)

	return &Base{Config: cfg, DB: db}, nil
}

// Close releases database resources.
func (b *Base) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// ID returns the connector template ID.
func (b *Base) ID() string {
	return "jdbc." + b.Config.Driver
}

// Kind returns the backend kind.
func (b *Base) Kind() endpoint.Kind {
	return endpoint.KindRelationalDirect
}

// GetDescriptor describes the template for the configured driver.
func (b *Base) GetDescriptor() *endpoint.Descriptor {
	title, vendor, port := "PostgreSQL (direct)", "PostgreSQL", 5432
	if b.Config.Driver == DriverMySQL {
		title, vendor, port = "MySQL (direct)", "Oracle", 3306
	}
	return &endpoint.Descriptor{
		ID:          b.ID(),
		Kind:        endpoint.KindRelationalDirect,
		Title:       title,
		Vendor:      vendor,
		Description: "Relational database reached with its native wire protocol",
		Protocols:   []string{vendor},
		DefaultPort: port,
		Driver:      b.Config.SQLDriverName(),
		Fields: []*endpoint.FieldDescriptor{
			{Key: "host", Aliases: []string{"hostname"}, Label: "Host", ValueType: "string", Required: true, Semantic: "HOST"},
			{Key: "port", Label: "Port", ValueType: "integer", Required: true, Semantic: "PORT", DefaultValue: strconv.Itoa(port)},
			{Key: "database", Aliases: []string{"dbname"}, Label: "Database", ValueType: "string", Required: true},
			{Key: "username", Aliases: []string{"user"}, Label: "Username", ValueType: "string", Required: true},
			{Key: "password", Label: "Password", ValueType: "password", Required: true, Semantic: "PASSWORD", Sensitive: true},
			{Key: "ssl_mode", Aliases: []string{"sslMode"}, Label: "SSL Mode", ValueType: "string", DefaultValue: "disable", Advanced: true},
			{Key: "schema", Label: "Schema", ValueType: "string", Advanced: true},
		},
	}
}

// ValidateConfig checks required fields and their syntax without network I/O.
func (b *Base) ValidateConfig(ctx context.Context, params map[string]any) (*endpoint.ValidationResult, error) {
	if missing := endpoint.MissingRequired(b.GetDescriptor(), params); len(missing) > 0 {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: "missing required fields: " + strings.Join(missing, ", "),
			Code:    endpoint.CodeConfigInvalid,
			Missing: missing,
		}, nil
	}
	cfg := ParseConfig(b.Config.Driver, params)
	checks := []struct {
		field string
		res   credentials.Result
	}{
		{"host", credentials.ValidateHostname(cfg.Host)},
		{"port", credentials.ValidatePort(strconv.Itoa(cfg.Port))},
		{"database", credentials.ValidateDatabaseName(cfg.Driver, cfg.Database)},
		{"username", credentials.ValidateUsername(cfg.Driver, cfg.User)},
	}
	for _, check := range checks {
		if !check.res.IsValid {
			return &endpoint.ValidationResult{Valid: false, Message: check.field + ": " + check.res.Message, Code: endpoint.CodeConfigInvalid}, nil
		}
	}
	return &endpoint.ValidationResult{Valid: true, Message: "connection parameters look valid"}, nil
}

// Target declares the database port.
func (b *Base) Target() endpoint.Target {
	return endpoint.Target{
		Host:  b.Config.Host,
		Ports: []endpoint.Port{{Number: b.Config.Port, Label: "database"}},
	}
}

// Handshake pings the database and reports the server version.
func (b *Base) Handshake(ctx context.Context) endpoint.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	if err := b.DB.PingContext(ctx); err != nil {
		return endpoint.Failed(classifyDriverError(err), fmt.Sprintf("%s handshake failed: %v", b.Config.Driver, err), time.Since(start))
	}

	var version string
	if err := b.DB.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		version = "unknown version"
	}
	return endpoint.Succeeded(fmt.Sprintf("Connection successful (%s)", firstLine(version)), time.Since(start))
}

// ListTables returns the base tables of schemaName from information_schema.
func (b *Base) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	if schemaName == "" {
		schemaName = b.Config.Schema
	}
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	if b.Config.Driver == DriverMySQL {
		query = strings.Replace(query, "$1", "?", 1)
	}

	rows, err := b.DB.QueryContext(ctx, query, schemaName)
	if err != nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, true, fmt.Errorf("failed to list tables: %w", err))
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, false, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, endpoint.WrapError(endpoint.CodeIntrospectionFailed, true, err)
	}
	return tables, nil
}

func classifyDriverError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password authentication failed"), strings.Contains(msg, "access denied"):
		return endpoint.CodeAuthInvalid
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "unknown database"):
		return endpoint.CodeConfigInvalid
	}
	return endpoint.CodeOf(err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var (
	_ endpoint.Endpoint    = (*Base)(nil)
	_ endpoint.TableLister = (*Base)(nil)
)
