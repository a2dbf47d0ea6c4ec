// Package schema decides whether a backend holds the application's expected
// tables.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// State classifies how much of the catalog a backend has.
type State string

const (
	Absent   State = "absent"
	Partial  State = "partial"
	Complete State = "complete"
)

// Status is the result of one inspection.
type Status struct {
	State          State    `json:"state"`
	ExistingTables []string `json:"existingTables"`
	MissingTables  []string `json:"missingTables"`
	ExpectedCount  int      `json:"expectedCount"`
	// Verified is false when the backend could not be introspected and the
	// tables were assumed missing.
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// Classify intersects the expected tables with those found on the backend.
// Both result slices are sorted.
func Classify(expected, found []string) Status {
	have := make(map[string]bool, len(found))
	for _, name := range found {
		have[strings.ToLower(name)] = true
	}

	existing := []string{}
	missing := []string{}
	for _, name := range expected {
		if have[strings.ToLower(name)] {
			existing = append(existing, name)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(existing)
	sort.Strings(missing)

	st := Status{
		ExistingTables: existing,
		MissingTables:  missing,
		ExpectedCount:  len(expected),
		Verified:       true,
	}
	switch {
	case len(missing) == 0:
		st.State = Complete
		st.Message = fmt.Sprintf("All %d tables present", len(expected))
	case len(existing) == 0:
		st.State = Absent
		st.Message = fmt.Sprintf("None of the %d expected tables exist", len(expected))
	default:
		st.State = Partial
		st.Message = fmt.Sprintf("%d of %d tables present; missing %s", len(existing), len(expected), strings.Join(missing, ", "))
	}
	return st
}

// Inspector checks a backend against a catalog.
type Inspector struct {
	Catalog    *Catalog
	SchemaName string
	Logger     *slog.Logger
}

// NewInspector returns an inspector for catalog in schemaName.
func NewInspector(catalog *Catalog, schemaName string, logger *slog.Logger) *Inspector {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if schemaName == "" {
		schemaName = "public"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{Catalog: catalog, SchemaName: schemaName, Logger: logger}
}

// Inspect lists the backend's tables and classifies them. A failed listing
// yields an unverified Absent status carrying the raw error.
func (i *Inspector) Inspect(ctx context.Context, lister endpoint.TableLister) Status {
	expected := i.Catalog.Names()
	found, err := lister.ListTables(ctx, i.SchemaName)
	if err != nil {
		i.Logger.Warn("schema introspection failed", "schema", i.SchemaName, "error", err)
		missing := append([]string(nil), expected...)
		sort.Strings(missing)
		return Status{
			State:          Absent,
			ExistingTables: []string{},
			MissingTables:  missing,
			ExpectedCount:  len(expected),
			Verified:       false,
			Message:        "could not introspect schema: " + err.Error(),
		}
	}
	st := Classify(expected, found)
	i.Logger.Debug("schema inspected", "schema", i.SchemaName, "state", st.State, "missing", st.MissingTables)
	return st
}
