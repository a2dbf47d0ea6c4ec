package verify_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/nucleus/provision-core/internal/connector/gateway"
	_ "github.com/nucleus/provision-core/internal/connector/minio"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/probe"
	"github.com/nucleus/provision-core/internal/schema"
	"github.com/nucleus/provision-core/internal/state"
	"github.com/nucleus/provision-core/internal/verify"
)

const openAPIDoc = `{"swagger":"2.0","paths":{"/":{},"/recipes":{},"/rpc/login":{}}}`

func gatewayServer(t *testing.T) (*httptest.Server, endpoint.BackendConfig) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/openapi+json")
		w.Write([]byte(openAPIDoc))
	}))
	u, _ := url.Parse(srv.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	return srv, endpoint.BackendConfig{
		Kind: endpoint.KindRelationalGateway,
		Params: map[string]any{
			"host":        host,
			"port":        "1",
			"gatewayPort": port,
			"database":    "chef",
			"username":    "authenticator",
			"password":    "S3cure!pass",
		},
	}
}

func newService(t *testing.T, st *state.FileStore) *verify.Service {
	t.Helper()
	return verify.New(verify.Options{Prober: probe.New(), State: st})
}

func TestVerify_PartialSchemaProducesArtifact(t *testing.T) {
	srv, cfg := gatewayServer(t)
	defer srv.Close()

	report := newService(t, nil).Verify(context.Background(), cfg, nil)
	if !report.Connection.Success {
		t.Fatalf("connection failed: %s", report.Connection.Message)
	}
	if report.Schema == nil || report.Schema.State != schema.Partial {
		t.Fatalf("schema = %+v", report.Schema)
	}
	if report.Artifact == nil {
		t.Fatal("expected a migration artifact")
	}
	if n := strings.Count(report.Artifact.Script, "CREATE TABLE IF NOT EXISTS"); n != 2 {
		t.Fatalf("expected 2 CREATE TABLE statements, got %d", n)
	}
	if !strings.Contains(report.Artifact.Filename, "-migration-") {
		t.Fatalf("filename = %s", report.Artifact.Filename)
	}
}

func TestVerify_StopsAfterFailedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	cfg := endpoint.BackendConfig{Kind: endpoint.KindRelationalGateway, Params: map[string]any{"host": host, "gatewayPort": port}}

	report := newService(t, nil).Verify(context.Background(), cfg, nil)
	if report.Connection.Success || report.Schema != nil || report.Artifact != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.Connection.Message, "502") {
		t.Fatalf("message should carry the raw status: %q", report.Connection.Message)
	}
}

func TestVerify_ObjectStoreSkipsSchema(t *testing.T) {
	cfg := endpoint.BackendConfig{
		Kind:   endpoint.KindObjectStore,
		Params: map[string]any{"endpointUrl": "file://" + t.TempDir(), "bucket": "chef-images"},
	}
	svc := newService(t, nil)
	report := svc.Verify(context.Background(), cfg, nil)
	if !report.Connection.Success || report.Schema != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := svc.CheckSchema(context.Background(), cfg); !errors.Is(err, verify.ErrNotIntrospectable) {
		t.Fatalf("CheckSchema err = %v", err)
	}
}

func TestValidateField_StoresResult(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	res := svc.ValidateField(ctx, endpoint.KindObjectStore, "", "bucket", "Bad_Bucket")
	if res.IsValid {
		t.Fatal("uppercase bucket should be invalid")
	}
	got, err := svc.LatestResult(ctx, endpoint.KindObjectStore, "bucket")
	if err != nil || got == nil || got.Success || got.Code != endpoint.CodeConfigInvalid {
		t.Fatalf("stored = %+v, %v", got, err)
	}
	if other, _ := svc.LatestResult(ctx, endpoint.KindObjectStore, "accessKey"); other != nil {
		t.Fatal("unrelated field has a result")
	}
}

func TestState_RoundTrip(t *testing.T) {
	st, err := state.NewFileStore(filepath.Join(t.TempDir(), "state.yaml"), "s3cret", nil, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc := newService(t, st)

	if _, err := svc.LoadState(); !errors.Is(err, verify.ErrNoState) {
		t.Fatalf("LoadState err = %v", err)
	}
	if err := svc.SaveState(endpoint.BackendConfig{Kind: "ftp"}); err == nil {
		t.Fatal("unknown kind should not be saved")
	}

	_, cfg := gatewayServer(t)
	if err := svc.SaveState(cfg); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	loaded, err := svc.LoadState()
	if err != nil || loaded.Params["password"] != "S3cure!pass" {
		t.Fatalf("loaded = %+v, %v", loaded, err)
	}
	if svc.Redact(loaded)["password"] != "********" {
		t.Fatal("password not redacted")
	}
}

func TestState_RejectsInvalidConfig(t *testing.T) {
	st, err := state.NewFileStore(filepath.Join(t.TempDir(), "state.yaml"), "s3cret", nil, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc := newService(t, st)

	for name, params := range map[string]map[string]any{
		"missing fields": {"host": "localhost", "port": "5432"},
		"bad host":       {"host": "bad host!", "port": "5432", "database": "chef", "username": "authenticator", "password": "S3cure!pass"},
	} {
		cfg := endpoint.BackendConfig{Kind: endpoint.KindRelationalGateway, Params: params}
		if err := svc.SaveState(cfg); !errors.Is(err, verify.ErrInvalidConfig) {
			t.Errorf("%s: SaveState err = %v", name, err)
		}
	}
	if _, err := svc.LoadState(); !errors.Is(err, verify.ErrNoState) {
		t.Fatalf("rejected config was persisted: %v", err)
	}
}

func TestNew_DefaultsProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	cfg := endpoint.BackendConfig{
		Kind:   endpoint.KindRelationalGateway,
		Params: map[string]any{"host": "127.0.0.1", "port": "1", "gatewayPort": port},
	}
	res := verify.New(verify.Options{}).TestConnection(context.Background(), cfg, nil)
	if res.Success {
		t.Fatalf("closed gateway port reported success: %+v", res)
	}
	if len(res.Steps) == 0 || res.Steps[0].Stage != "host" {
		t.Fatalf("steps = %+v", res.Steps)
	}
}
