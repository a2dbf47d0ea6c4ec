package endpoint

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a connector for one backend template from its raw params.
// Factories must not perform network I/O.
type Factory func(params map[string]any) (Endpoint, error)

// Registry maps backend template IDs (gateway.postgrest, object.minio, ...)
// to the factories of their connectors.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Factory
}

// NewRegistry returns a registry with no templates.
func NewRegistry() *Registry {
	return &Registry{templates: map[string]Factory{}}
}

// Register binds a connector factory to templateID. Connector packages call
// it from init, so a template registered twice is a programming error and
// panics.
func (r *Registry) Register(templateID string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.templates[templateID]; dup {
		panic("endpoint: template " + templateID + " registered twice")
	}
	r.templates[templateID] = factory
}

// Get looks up the connector factory of a template.
func (r *Registry) Get(templateID string) (Factory, bool) {
	r.mu.RLock()
	factory, ok := r.templates[templateID]
	r.mu.RUnlock()
	return factory, ok
}

// List reports the registered templates, sorted so template listings are
// stable across runs.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Create builds the connector of templateID. An unregistered template is a
// configuration error carrying CodeConfigInvalid.
func (r *Registry) Create(templateID string, params map[string]any) (Endpoint, error) {
	factory, ok := r.Get(templateID)
	if !ok {
		return nil, WrapError(CodeConfigInvalid, false, fmt.Errorf("no connector for template %q", templateID))
	}
	return factory(params)
}

// CreateFor resolves the template for cfg and instantiates it.
func (r *Registry) CreateFor(cfg BackendConfig) (Endpoint, error) {
	templateID, err := TemplateFor(cfg)
	if err != nil {
		return nil, err
	}
	return r.Create(templateID, cfg.Params)
}

// Descriptor returns the descriptor of one template.
func (r *Registry) Descriptor(templateID string) (*Descriptor, bool) {
	ep, err := r.Create(templateID, map[string]any{})
	if err != nil {
		return nil, false
	}
	defer ep.Close()
	return ep.GetDescriptor(), true
}

// Descriptors returns the descriptor of every registered template.
// Templates whose factory fails on empty params are skipped.
func (r *Registry) Descriptors() []*Descriptor {
	var out []*Descriptor
	for _, id := range r.List() {
		ep, err := r.Create(id, map[string]any{})
		if err != nil {
			continue
		}
		out = append(out, ep.GetDescriptor())
		_ = ep.Close()
	}
	return out
}

// TemplateFor returns the template ID serving cfg. An explicit Template wins;
// otherwise the kind's default template is used, with the relational-direct
// kind selecting its driver from the "driver" param.
func TemplateFor(cfg BackendConfig) (string, error) {
	if cfg.Template != "" {
		return cfg.Template, nil
	}
	switch cfg.Kind {
	case KindRelationalGateway:
		return "gateway.postgrest", nil
	case KindObjectStore:
		return "object.minio", nil
	case KindHostedPlatform:
		return "hosted.supabase", nil
	case KindRelationalDirect:
		if driver := strings.ToLower(FirstString(cfg.Params, "driver")); driver == "mysql" {
			return "jdbc.mysql", nil
		}
		return "jdbc.postgres", nil
	}
	return "", fmt.Errorf("unknown backend kind: %q", cfg.Kind)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry connector packages register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register binds a connector template in the default registry.
func Register(templateID string, factory Factory) {
	defaultRegistry.Register(templateID, factory)
}
