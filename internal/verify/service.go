// Package verify is the operation surface used by the CLI and the HTTP API:
// field validation, connection tests, schema checks and migration
// artifacts, plus access to the persisted configuration.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/migration"
	"github.com/nucleus/provision-core/internal/probe"
	"github.com/nucleus/provision-core/internal/results"
	"github.com/nucleus/provision-core/internal/schema"
	"github.com/nucleus/provision-core/internal/state"
	"github.com/nucleus/provision-core/internal/tester"
)

// ErrNotIntrospectable is returned by CheckSchema for backends without tables.
var ErrNotIntrospectable = errors.New("backend does not expose tables")

// ErrNoState is returned when no persisted configuration exists.
var ErrNoState = errors.New("no saved configuration")

// ErrInvalidConfig is returned by SaveState when the connector rejects the
// parameters.
var ErrInvalidConfig = errors.New("invalid configuration")

// Options configures a Service. Zero values select defaults; a nil Prober
// uses probe.New in lenient mode.
type Options struct {
	Registry         *endpoint.Registry
	Prober           tester.Prober
	Catalog          *schema.Catalog
	SchemaName       string
	ArtifactPrefix   string
	HandshakeTimeout time.Duration
	Results          results.Store
	State            *state.FileStore
	Logger           *slog.Logger
}

// Service runs verification operations.
type Service struct {
	registry   *endpoint.Registry
	tester     *tester.Tester
	catalog    *schema.Catalog
	schemaName string
	prefix     string
	results    results.Store
	state      *state.FileStore
	logger     *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = endpoint.DefaultRegistry()
	}
	if opts.Catalog == nil {
		opts.Catalog = schema.DefaultCatalog()
	}
	if opts.SchemaName == "" {
		opts.SchemaName = "public"
	}
	if opts.ArtifactPrefix == "" {
		opts.ArtifactPrefix = migration.DefaultPrefix
	}
	if opts.Results == nil {
		opts.Results = results.NewMemoryStore(results.DefaultTTL)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Prober == nil {
		opts.Prober = probe.New(probe.WithLogger(opts.Logger))
	}

	t := tester.New(opts.Registry, opts.Prober, opts.Logger)
	t.SetHandshakeTimeout(opts.HandshakeTimeout)

	return &Service{
		registry:   opts.Registry,
		tester:     t,
		catalog:    opts.Catalog,
		schemaName: opts.SchemaName,
		prefix:     opts.ArtifactPrefix,
		results:    opts.Results,
		state:      opts.State,
		logger:     opts.Logger,
	}
}

// Registry returns the endpoint registry.
func (s *Service) Registry() *endpoint.Registry { return s.registry }

// Catalog returns the expected table catalog.
func (s *Service) Catalog() *schema.Catalog { return s.catalog }

// ValidateField checks one field and records the outcome for display.
// driver only matters for the relational-direct kind.
func (s *Service) ValidateField(ctx context.Context, kind endpoint.Kind, driver, field, value string) credentials.Result {
	res := credentials.ValidateField(kind, driver, field, value)

	probeRes := endpoint.Succeeded(res.Message, -1)
	if !res.IsValid {
		probeRes = endpoint.Failed(endpoint.CodeConfigInvalid, res.Message, -1)
	}
	if err := s.results.Put(ctx, kind, field, probeRes); err != nil {
		s.logger.Warn("could not store field result", "kind", kind, "field", field, "error", err)
	}
	return res
}

// LatestResult returns the unexpired result for a field, or nil.
func (s *Service) LatestResult(ctx context.Context, kind endpoint.Kind, field string) (*endpoint.ProbeResult, error) {
	return s.results.Get(ctx, kind, field)
}

// TestConnection runs the staged connection test on a snapshot of cfg.
func (s *Service) TestConnection(ctx context.Context, cfg endpoint.BackendConfig, onProgress func(tester.Progress)) tester.Result {
	res := s.tester.TestConnection(ctx, cfg.Clone(), onProgress)
	if err := s.results.Put(ctx, cfg.Kind, "connection", lastStep(res)); err != nil {
		s.logger.Warn("could not store connection result", "kind", cfg.Kind, "error", err)
	}
	return res
}

func lastStep(res tester.Result) endpoint.ProbeResult {
	if res.Success {
		return endpoint.Succeeded(res.Message, -1)
	}
	code := endpoint.CodeUnknown
	if n := len(res.Steps); n > 0 && res.Steps[n-1].Result.Code != "" {
		code = res.Steps[n-1].Result.Code
	}
	return endpoint.Failed(code, res.Message, -1)
}

// CheckSchema inspects the backend's tables. Introspection failures are
// reported in the status; the error covers backends that cannot be
// inspected at all.
func (s *Service) CheckSchema(ctx context.Context, cfg endpoint.BackendConfig) (schema.Status, error) {
	ep, err := s.registry.CreateFor(cfg.Clone())
	if err != nil {
		return schema.Status{}, err
	}
	defer ep.Close()

	lister, ok := ep.(endpoint.TableLister)
	if !ok {
		return schema.Status{}, fmt.Errorf("%w: %s", ErrNotIntrospectable, cfg.Kind)
	}
	return s.inspector(cfg).Inspect(ctx, lister), nil
}

func (s *Service) inspector(cfg endpoint.BackendConfig) *schema.Inspector {
	return schema.NewInspector(s.catalog, s.schemaFor(cfg), s.logger)
}

func (s *Service) schemaFor(cfg endpoint.BackendConfig) string {
	if name := endpoint.FirstString(cfg.Params, "schema"); name != "" && cfg.Kind != endpoint.KindRelationalDirect {
		return name
	}
	return s.schemaName
}

// GenerateMigrationArtifact renders the DDL for status in the default schema.
func (s *Service) GenerateMigrationArtifact(status schema.Status) (migration.Artifact, error) {
	return migration.NewGenerator(s.catalog, s.schemaName, s.prefix).Generate(status)
}

// GenerateMigrationArtifactFor renders the DDL for status in cfg's schema.
func (s *Service) GenerateMigrationArtifactFor(cfg endpoint.BackendConfig, status schema.Status) (migration.Artifact, error) {
	return migration.NewGenerator(s.catalog, s.schemaFor(cfg), s.prefix).Generate(status)
}

// GenerateColumnDeltaFor is GenerateMigrationArtifactFor plus the catalog's
// delta columns for tables that already exist.
func (s *Service) GenerateColumnDeltaFor(cfg endpoint.BackendConfig, status schema.Status) (migration.Artifact, error) {
	g := migration.NewGenerator(s.catalog, s.schemaFor(cfg), s.prefix)
	g.IncludeDelta = true
	return g.Generate(status)
}

// Report is the outcome of a full verification run.
type Report struct {
	Connection tester.Result       `json:"connection"`
	Schema     *schema.Status      `json:"schema,omitempty"`
	Artifact   *migration.Artifact `json:"artifact,omitempty"`
}

// Verify tests the connection, then checks the schema when the handshake
// succeeded and the backend has tables, then renders a migration when the
// schema is incomplete.
func (s *Service) Verify(ctx context.Context, cfg endpoint.BackendConfig, onProgress func(tester.Progress)) Report {
	cfg = cfg.Clone()
	report := Report{Connection: s.TestConnection(ctx, cfg, onProgress)}
	if !report.Connection.Success {
		return report
	}

	status, err := s.CheckSchema(ctx, cfg)
	if err != nil {
		if !errors.Is(err, ErrNotIntrospectable) {
			s.logger.Warn("schema check skipped", "kind", cfg.Kind, "error", err)
		}
		return report
	}
	report.Schema = &status
	if status.State == schema.Complete {
		return report
	}

	artifact, err := s.GenerateMigrationArtifactFor(cfg, status)
	if err != nil {
		s.logger.Error("migration artifact failed", "error", err)
		return report
	}
	report.Artifact = &artifact
	return report
}

// LoadState returns the persisted configuration.
func (s *Service) LoadState() (endpoint.BackendConfig, error) {
	if s.state == nil {
		return endpoint.BackendConfig{}, ErrNoState
	}
	cfg, ok, err := s.state.Load()
	if err != nil {
		return endpoint.BackendConfig{}, err
	}
	if !ok {
		return endpoint.BackendConfig{}, ErrNoState
	}
	return cfg, nil
}

// SaveState persists cfg once its connector accepts the parameters.
// Rejected configurations wrap ErrInvalidConfig and are not written.
func (s *Service) SaveState(cfg endpoint.BackendConfig) error {
	if s.state == nil {
		return errors.New("state store not configured")
	}
	if _, err := endpoint.TemplateFor(cfg); err != nil {
		return err
	}
	ep, err := s.registry.CreateFor(cfg.Clone())
	if err != nil {
		return err
	}
	defer ep.Close()

	res, err := ep.ValidateConfig(context.Background(), cfg.Params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if res != nil && !res.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, res.Message)
	}
	return s.state.Save(cfg)
}

// Redact masks the secrets of cfg.
func (s *Service) Redact(cfg endpoint.BackendConfig) map[string]any {
	if s.state != nil {
		return s.state.Redact(cfg)
	}
	return state.RedactParams(cfg.Params, nil)
}
