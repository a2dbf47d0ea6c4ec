// Package state persists the active backend configuration between runs.
// The document is read once at startup and rewritten on every change.
package state

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/provision-core/internal/endpoint"
)

const redacted = "********"

// Document is the on-disk form of the persisted configuration.
type Document struct {
	Kind      endpoint.Kind     `yaml:"kind"`
	Template  string            `yaml:"template,omitempty"`
	Params    map[string]any    `yaml:"params"`
	Sealed    map[string]string `yaml:"sealed,omitempty"`
	UpdatedAt time.Time         `yaml:"updatedAt"`
}

// FileStore reads and writes the state document at a fixed path.
type FileStore struct {
	path     string
	key      *[32]byte
	registry *endpoint.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewFileStore returns a store at path. With an empty secret, sensitive
// params are never written to disk.
func NewFileStore(path, secret string, registry *endpoint.Registry, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state path is required")
	}
	if registry == nil {
		registry = endpoint.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{path: path, registry: registry, logger: logger, now: time.Now}
	if secret != "" {
		key, err := deriveKey(secret)
		if err != nil {
			return nil, err
		}
		s.key = key
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func deriveKey(secret string) (*[32]byte, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("provision-core state v1"))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}
	return &key, nil
}

// Load reads the saved configuration. ok is false when nothing was saved yet.
func (s *FileStore) Load() (cfg endpoint.BackendConfig, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return endpoint.BackendConfig{}, false, nil
		}
		return endpoint.BackendConfig{}, false, fmt.Errorf("read state: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return endpoint.BackendConfig{}, false, fmt.Errorf("parse state %s: %w", s.path, err)
	}

	params := make(map[string]any, len(doc.Params)+len(doc.Sealed))
	for k, v := range doc.Params {
		params[k] = v
	}
	for k, box := range doc.Sealed {
		if s.key == nil {
			s.logger.Warn("sealed state value skipped, no secret key configured", "param", k)
			continue
		}
		plain, err := open(s.key, box)
		if err != nil {
			s.logger.Warn("sealed state value could not be opened", "param", k, "error", err)
			continue
		}
		params[k] = plain
	}
	return endpoint.BackendConfig{Kind: doc.Kind, Template: doc.Template, Params: params}, true, nil
}

// Save writes cfg atomically. Sensitive params are sealed or dropped.
func (s *FileStore) Save(cfg endpoint.BackendConfig) error {
	sensitive := s.SensitiveKeys(cfg)
	doc := Document{
		Kind:      cfg.Kind,
		Template:  cfg.Template,
		Params:    map[string]any{},
		UpdatedAt: s.now().UTC(),
	}
	for k, v := range cfg.Params {
		if !sensitive[k] {
			doc.Params[k] = v
			continue
		}
		if s.key == nil {
			continue
		}
		box, err := seal(s.key, fmt.Sprint(v))
		if err != nil {
			return err
		}
		if doc.Sealed == nil {
			doc.Sealed = map[string]string{}
		}
		doc.Sealed[k] = box
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Debug("state saved", "path", s.path, "kind", cfg.Kind, "params", s.Redact(cfg))
	return nil
}

// SensitiveKeys returns the params of cfg that must not be stored or
// logged in clear text.
func (s *FileStore) SensitiveKeys(cfg endpoint.BackendConfig) map[string]bool {
	keys := map[string]bool{}
	if tmpl, err := endpoint.TemplateFor(cfg); err == nil {
		if desc, ok := s.registry.Descriptor(tmpl); ok {
			keys = endpoint.SensitiveKeys(desc)
		}
	}
	for k := range cfg.Params {
		if looksSecret(k) {
			keys[k] = true
		}
	}
	return keys
}

// Redact returns a copy of cfg's params with secrets masked.
func (s *FileStore) Redact(cfg endpoint.BackendConfig) map[string]any {
	return RedactParams(cfg.Params, s.SensitiveKeys(cfg))
}

// RedactParams masks every key in sensitive.
func RedactParams(params map[string]any, sensitive map[string]bool) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if sensitive[k] || looksSecret(k) {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}

func looksSecret(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"password", "secret", "token", "apikey", "anonkey", "servicekey"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
