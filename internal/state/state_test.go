package state_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/nucleus/provision-core/internal/connector/gateway"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/state"
)

func gatewayConfig() endpoint.BackendConfig {
	return endpoint.BackendConfig{
		Kind: endpoint.KindRelationalGateway,
		Params: map[string]any{
			"host":     "db.example.com",
			"port":     5432,
			"database": "chef",
			"username": "authenticator",
			"password": "Tr0ub4dor&3xyz",
		},
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := state.NewFileStore(filepath.Join(t.TempDir(), "state.yaml"), "", nil, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, ok, err := s.Load(); ok || err != nil {
		t.Fatalf("Load = %v, %v; want nothing saved", ok, err)
	}
}

func TestFileStore_SealsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	s, err := state.NewFileStore(path, "local-dev-secret", nil, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save(gatewayConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "Tr0ub4dor") {
		t.Fatalf("password written in clear text:\n%s", raw)
	}
	if !strings.Contains(string(raw), "sealed:") {
		t.Fatalf("expected sealed section:\n%s", raw)
	}
	if info, _ := os.Stat(path); info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}

	cfg, ok, err := s.Load()
	if !ok || err != nil {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if cfg.Kind != endpoint.KindRelationalGateway || cfg.Params["password"] != "Tr0ub4dor&3xyz" {
		t.Fatalf("loaded = %+v", cfg)
	}
	if cfg.Params["port"] != 5432 || cfg.Params["host"] != "db.example.com" {
		t.Fatalf("plain params = %+v", cfg.Params)
	}
}

func TestFileStore_WithoutSecretDropsSensitiveParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	s, _ := state.NewFileStore(path, "", nil, nil)
	if err := s.Save(gatewayConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg, _, _ := s.Load()
	if _, ok := cfg.Params["password"]; ok {
		t.Fatal("password persisted without a secret key")
	}
	if cfg.Params["database"] != "chef" {
		t.Fatalf("params = %+v", cfg.Params)
	}
}

func TestFileStore_WrongSecretSkipsSealedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	writer, _ := state.NewFileStore(path, "first-secret", nil, nil)
	if err := writer.Save(gatewayConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reader, _ := state.NewFileStore(path, "second-secret", nil, nil)
	cfg, ok, err := reader.Load()
	if !ok || err != nil {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if _, present := cfg.Params["password"]; present {
		t.Fatal("password opened with the wrong key")
	}
}

func TestFileStore_Redact(t *testing.T) {
	s, _ := state.NewFileStore(filepath.Join(t.TempDir(), "state.yaml"), "", nil, nil)
	out := s.Redact(gatewayConfig())
	if out["password"] != "********" || out["host"] != "db.example.com" {
		t.Fatalf("redacted = %+v", out)
	}

	out = state.RedactParams(map[string]any{"serviceKey": "eyJ...", "bucket": "chef-images"}, nil)
	if out["serviceKey"] != "********" || out["bucket"] != "chef-images" {
		t.Fatalf("redacted = %+v", out)
	}
}
