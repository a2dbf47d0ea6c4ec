package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/config"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/probe"
	"github.com/nucleus/provision-core/internal/results"
	"github.com/nucleus/provision-core/internal/state"
	"github.com/nucleus/provision-core/internal/verify"
)

// buildService wires the verification service from configuration. The
// returned cleanup releases the result store.
func buildService(cfg *config.Config) (*verify.Service, func(), error) {
	logger := current.logger
	cleanup := func() {}

	prober := probe.New(
		probe.WithMode(probe.ParseMode(cfg.Probe.Mode)),
		probe.WithTimeouts(
			config.Duration(cfg.Probe.HostTimeout, probe.DefaultTimeout),
			config.Duration(cfg.Probe.PortTimeout, probe.DefaultTimeout)),
		probe.WithProbePorts(cfg.Probe.Ports...),
		probe.WithLogger(logger),
	)

	ttl := config.Duration(cfg.Results.TTL, results.DefaultTTL)
	var store results.Store = results.NewMemoryStore(ttl)
	if cfg.Results.Backend == "redis" {
		client, err := results.Connect(cfg.Results.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		redisStore := results.NewRedisStore(client, ttl)
		store = redisStore
		cleanup = func() { _ = redisStore.Close() }
	}

	st, err := state.NewFileStore(cfg.State.Path, cfg.State.SecretKey, nil, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc := verify.New(verify.Options{
		Prober:           prober,
		SchemaName:       cfg.Schema.Name,
		ArtifactPrefix:   cfg.Schema.ArtifactPrefix,
		HandshakeTimeout: config.Duration(cfg.Probe.HandshakeTimeout, 0),
		Results:          store,
		State:            st,
		Logger:           logger,
	})
	return svc, cleanup, nil
}

// backendFlags are shared by commands that act on one backend.
type backendFlags struct {
	kind     string
	template string
	params   []string
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "", "backend kind ("+kindList()+"); defaults to the saved configuration")
	cmd.Flags().StringVar(&f.template, "template", "", "explicit connector template")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "connection parameter as key=value (repeatable)")
}

func kindList() string {
	kinds := endpoint.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// resolve builds the backend config from flags, or loads the saved one.
func (f *backendFlags) resolve(svc *verify.Service) (endpoint.BackendConfig, error) {
	if f.kind == "" && f.template == "" {
		cfg, err := svc.LoadState()
		if errors.Is(err, verify.ErrNoState) {
			return cfg, errors.New("no saved configuration; pass --kind and --param")
		}
		return cfg, err
	}

	cfg := endpoint.BackendConfig{Template: f.template, Params: map[string]any{}}
	if f.kind != "" {
		kind, err := endpoint.ParseKind(f.kind)
		if err != nil {
			return cfg, err
		}
		cfg.Kind = kind
	}
	for _, p := range f.params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return cfg, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		cfg.Params[strings.TrimSpace(key)] = value
	}
	return cfg, nil
}
