package endpoint

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies a family of persistence backends.
type Kind string

const (
	KindRelationalGateway Kind = "relational-gateway"
	KindObjectStore       Kind = "object-store"
	KindHostedPlatform    Kind = "hosted-platform"
	KindRelationalDirect  Kind = "relational-direct"
)

// Kinds lists every supported backend kind in display order.
func Kinds() []Kind {
	return []Kind{KindRelationalGateway, KindObjectStore, KindHostedPlatform, KindRelationalDirect}
}

// ParseKind maps a loose kind string to a Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "relational-gateway", "gateway", "postgrest":
		return KindRelationalGateway, nil
	case "object-store", "object", "minio", "s3":
		return KindObjectStore, nil
	case "hosted-platform", "hosted", "supabase":
		return KindHostedPlatform, nil
	case "relational-direct", "direct", "jdbc", "postgres", "mysql":
		return KindRelationalDirect, nil
	}
	return "", fmt.Errorf("unknown backend kind: %q", raw)
}

// --- Backend configuration ---

// BackendConfig is the operator-entered configuration of one backend.
// Params holds the kind-specific fields; connectors parse them into typed configs.
type BackendConfig struct {
	Kind     Kind           `json:"kind" yaml:"kind"`
	Template string         `json:"template,omitempty" yaml:"template,omitempty"`
	Params   map[string]any `json:"params" yaml:"params"`
}

// Clone returns a snapshot that later edits to the original cannot affect.
func (c BackendConfig) Clone() BackendConfig {
	params := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		params[k] = v
	}
	return BackendConfig{Kind: c.Kind, Template: c.Template, Params: params}
}

// Host returns the configured host param.
func (c BackendConfig) Host() string {
	return FirstString(c.Params, "host", "hostname")
}

// Target is the network location a backend declares.
type Target struct {
	Host  string
	Ports []Port
}

// Port is a declared service port with a display label.
type Port struct {
	Number int
	Label  string
}

// --- Probe results ---

// ProbeResult is the outcome of one probe or test step. It is never mutated
// after creation; a fresh result replaces an old one.
type ProbeResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	LatencyMs *int64    `json:"latencyMs,omitempty"`
	Code      string    `json:"code,omitempty"`
	At        time.Time `json:"at"`
}

// Succeeded builds a successful ProbeResult.
func Succeeded(message string, latency time.Duration) ProbeResult {
	return ProbeResult{Success: true, Message: message, LatencyMs: millis(latency), At: time.Now()}
}

// Failed builds a failed ProbeResult carrying an error code.
func Failed(code, message string, latency time.Duration) ProbeResult {
	return ProbeResult{Success: false, Message: message, Code: code, LatencyMs: millis(latency), At: time.Now()}
}

func millis(d time.Duration) *int64 {
	if d < 0 {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// --- Validation ---

// ValidationResult reports whether a configuration is submittable.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Message         string   `json:"message"`
	DetectedVersion string   `json:"detectedVersion,omitempty"`
	Code            string   `json:"code,omitempty"`
	Retryable       bool     `json:"retryable"`
	Missing         []string `json:"missing,omitempty"`
}

// MissingRequired returns the keys of required descriptor fields that are empty in params.
func MissingRequired(desc *Descriptor, params map[string]any) []string {
	if desc == nil {
		return nil
	}
	var missing []string
	for _, f := range desc.Fields {
		if !f.Required {
			continue
		}
		if FirstString(params, append([]string{f.Key}, f.Aliases...)...) == "" {
			missing = append(missing, f.Key)
		}
	}
	sort.Strings(missing)
	return missing
}

// SensitiveKeys returns every param key (and alias) the descriptor marks as sensitive.
func SensitiveKeys(desc *Descriptor) map[string]bool {
	keys := map[string]bool{}
	if desc == nil {
		return keys
	}
	for _, f := range desc.Fields {
		if !f.Sensitive {
			continue
		}
		keys[f.Key] = true
		for _, a := range f.Aliases {
			keys[a] = true
		}
	}
	return keys
}
