package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nucleus/provision-core/internal/connector/gateway"
	"github.com/nucleus/provision-core/internal/connector/hosted"
	"github.com/nucleus/provision-core/internal/connector/minio"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/identity"
	"github.com/nucleus/provision-core/internal/persistence"
)

// ErrNoRecordBackend is returned when a backend kind cannot store records.
var ErrNoRecordBackend = errors.New("backend cannot store records")

// DefaultMatchKeys are the duplicate-detection fields per collection.
var DefaultMatchKeys = map[string][]string{
	"articles":  {"name", "supplier_local_id"},
	"recipes":   {"name"},
	"suppliers": {"name"},
}

// SaverFor returns the record saver for a gateway or hosted backend. The
// returned close function releases the endpoint.
func SaverFor(registry *endpoint.Registry, cfg endpoint.BackendConfig, logger *slog.Logger) (identity.RecordSaver, func() error, error) {
	if registry == nil {
		registry = endpoint.DefaultRegistry()
	}
	ep, err := registry.CreateFor(cfg)
	if err != nil {
		return nil, nil, err
	}
	switch e := ep.(type) {
	case *gateway.Endpoint:
		return persistence.NewGatewayRecords(e.Client, "", logger), e.Close, nil
	case *hosted.Endpoint:
		return persistence.NewGatewayRecords(e.Client, "/rest/v1", logger), e.Close, nil
	}
	ep.Close()
	return nil, nil, fmt.Errorf("%w: %s", ErrNoRecordBackend, cfg.Kind)
}

// ImagesFor returns the image store of an object-store backend.
func ImagesFor(registry *endpoint.Registry, cfg endpoint.BackendConfig) (*persistence.Images, error) {
	if registry == nil {
		registry = endpoint.DefaultRegistry()
	}
	ep, err := registry.CreateFor(cfg)
	if err != nil {
		return nil, err
	}
	m, ok := ep.(*minio.Endpoint)
	if !ok {
		ep.Close()
		return nil, fmt.Errorf("%w: %s has no object storage", ErrNoRecordBackend, cfg.Kind)
	}
	store, err := m.Store()
	if err != nil {
		return nil, err
	}
	return persistence.NewImages(store, m.Config().Bucket), nil
}

// Records hands out one reconciler per collection over a shared saver.
type Records struct {
	saver     identity.RecordSaver
	matchKeys map[string][]string
	logger    *slog.Logger

	mu          sync.Mutex
	reconcilers map[string]*identity.Reconciler
}

// NewRecords creates a collection set. A nil matchKeys uses DefaultMatchKeys.
func NewRecords(saver identity.RecordSaver, matchKeys map[string][]string, logger *slog.Logger) *Records {
	if matchKeys == nil {
		matchKeys = DefaultMatchKeys
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Records{
		saver:       saver,
		matchKeys:   matchKeys,
		logger:      logger,
		reconcilers: make(map[string]*identity.Reconciler),
	}
}

// Collection returns the reconciler for name, creating it on first use.
func (r *Records) Collection(name string) *identity.Reconciler {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.reconcilers[name]
	if !ok {
		rec = identity.NewReconciler(name, r.matchKeys[name], r.saver, r.logger)
		r.reconcilers[name] = rec
	}
	return rec
}
