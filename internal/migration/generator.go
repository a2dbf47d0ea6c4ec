// Package migration renders the DDL script that brings a backend's schema
// up to the expected catalog. Scripts are handed to an operator; nothing
// here executes them.
package migration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nucleus/provision-core/internal/schema"
)

// DefaultPrefix is the artifact filename prefix.
const DefaultPrefix = "chef-numbers"

// ErrUnknownTable is returned when a status names a table outside the catalog.
var ErrUnknownTable = errors.New("unknown table")

// Artifact is a generated, downloadable DDL script.
type Artifact struct {
	Script      string    `json:"script"`
	Filename    string    `json:"filename"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generator renders migration artifacts for a catalog. With IncludeDelta
// set, tables already present also get the catalog's delta columns.
type Generator struct {
	Catalog      *schema.Catalog
	SchemaName   string
	AppPrefix    string
	IncludeDelta bool
	Now          func() time.Time
}

// NewGenerator returns a generator with defaults filled in.
func NewGenerator(catalog *schema.Catalog, schemaName, prefix string) *Generator {
	if catalog == nil {
		catalog = schema.DefaultCatalog()
	}
	if schemaName == "" {
		schemaName = "public"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{Catalog: catalog, SchemaName: schemaName, AppPrefix: prefix, Now: time.Now}
}

// Generate renders the script for status. Only tables in MissingTables are
// touched unless IncludeDelta is set. Every statement is guarded so the
// script can be re-run.
func (g *Generator) Generate(status schema.Status) (Artifact, error) {
	missing := make(map[string]bool, len(status.MissingTables))
	for _, name := range status.MissingTables {
		if _, ok := g.Catalog.Table(name); !ok {
			return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
		}
		missing[name] = true
	}
	existing := make(map[string]bool, len(status.ExistingTables))
	if g.IncludeDelta {
		for _, name := range status.ExistingTables {
			if _, ok := g.Catalog.Table(name); ok {
				existing[name] = true
			}
		}
	}

	now := g.now()
	var b strings.Builder
	g.writeHeader(&b, status, now)

	b.WriteString("BEGIN;\n\n")
	if g.SchemaName != "public" {
		fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %s;\n\n", ident(g.SchemaName))
	}

	// Catalog order keeps the output stable regardless of status ordering.
	for _, t := range g.Catalog.Tables {
		if missing[t.Name] {
			g.writeCreateTable(&b, t)
		}
	}
	for _, t := range g.Catalog.Tables {
		if !existing[t.Name] {
			continue
		}
		for _, col := range g.Catalog.DeltaFor(t.Name) {
			fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s;\n", g.qualified(t.Name), columnSQL(col))
		}
	}

	b.WriteString("\nCOMMIT;\n\n")
	b.WriteString("-- Ask the gateway to pick up the new tables.\n")
	b.WriteString("NOTIFY pgrst, 'reload schema';\n")

	kind := "migration"
	if status.State == schema.Absent {
		kind = "schema"
	}
	return Artifact{
		Script:      b.String(),
		Filename:    fmt.Sprintf("%s-%s-%s.sql", g.AppPrefix, kind, now.Format("2006-01-02")),
		GeneratedAt: now,
	}, nil
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

func (g *Generator) writeHeader(b *strings.Builder, status schema.Status, now time.Time) {
	fmt.Fprintf(b, "-- %s schema script\n", g.AppPrefix)
	fmt.Fprintf(b, "-- Generated %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(b, "-- Target schema: %s\n", g.SchemaName)
	if status.State != "" {
		fmt.Fprintf(b, "-- Detected state: %s (%d of %d tables present)\n",
			status.State, len(status.ExistingTables), status.ExpectedCount)
	}
	if !status.Verified {
		b.WriteString("-- The schema could not be inspected; all tables are assumed missing.\n")
	}
	b.WriteString("-- Run this script in the database SQL editor. It is safe to run more than once.\n\n")
}

func (g *Generator) writeCreateTable(b *strings.Builder, t schema.TableDef) {
	cols := append(append([]schema.ColumnDef{}, t.Columns...), g.Catalog.DeltaFor(t.Name)...)
	fmt.Fprintf(b, "CREATE TABLE IF NOT EXISTS %s (\n", g.qualified(t.Name))
	for i, col := range cols {
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "    %s%s\n", columnSQL(col), sep)
	}
	b.WriteString(");\n\n")
}

func (g *Generator) qualified(table string) string {
	return ident(g.SchemaName) + "." + ident(table)
}

func columnSQL(col schema.ColumnDef) string {
	parts := []string{ident(col.Name), col.Type}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	switch {
	case col.Default != "":
		parts = append(parts, "DEFAULT "+col.Default)
	case col.DefaultLiteral != "":
		parts = append(parts, "DEFAULT "+literal(col.DefaultLiteral))
	}
	return strings.Join(parts, " ")
}
