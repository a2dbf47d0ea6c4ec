package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type stubEndpoint struct {
	id   string
	desc *Descriptor
}

func (s *stubEndpoint) ID() string { return s.id }
func (s *stubEndpoint) Kind() Kind { return KindRelationalGateway }
func (s *stubEndpoint) ValidateConfig(context.Context, map[string]any) (*ValidationResult, error) {
	return &ValidationResult{Valid: true}, nil
}
func (s *stubEndpoint) Target() Target                        { return Target{} }
func (s *stubEndpoint) Handshake(context.Context) ProbeResult { return Succeeded("ok", 0) }
func (s *stubEndpoint) GetDescriptor() *Descriptor            { return s.desc }
func (s *stubEndpoint) Close() error                          { return nil }

func stubFactory(id string) Factory {
	return func(map[string]any) (Endpoint, error) {
		return &stubEndpoint{id: id, desc: &Descriptor{ID: id}}, nil
	}
}

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		cfg  BackendConfig
		want string
	}{
		{BackendConfig{Kind: KindRelationalGateway}, "gateway.postgrest"},
		{BackendConfig{Kind: KindObjectStore}, "object.minio"},
		{BackendConfig{Kind: KindHostedPlatform}, "hosted.supabase"},
		{BackendConfig{Kind: KindRelationalDirect}, "jdbc.postgres"},
		{BackendConfig{Kind: KindRelationalDirect, Params: map[string]any{"driver": "MySQL"}}, "jdbc.mysql"},
		{BackendConfig{Kind: KindObjectStore, Template: "object.custom"}, "object.custom"},
	}
	for _, tt := range tests {
		got, err := TemplateFor(tt.cfg)
		if err != nil {
			t.Errorf("TemplateFor(%+v): %v", tt.cfg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TemplateFor(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}

	if _, err := TemplateFor(BackendConfig{Kind: "ftp"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{
		" Gateway ":    KindRelationalGateway,
		"s3":           KindObjectStore,
		"supabase":     KindHostedPlatform,
		"mysql":        KindRelationalDirect,
		"object-store": KindObjectStore,
	} {
		got, err := ParseKind(raw)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseKind("tape"); err == nil {
		t.Error("expected error")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b.two", stubFactory("b.two"))
	r.Register("a.one", stubFactory("a.one"))

	if got := r.List(); len(got) != 2 || got[0] != "a.one" || got[1] != "b.two" {
		t.Errorf("List() = %v", got)
	}
	if d, ok := r.Descriptor("b.two"); !ok || d.ID != "b.two" {
		t.Errorf("Descriptor(b.two) = %v, %v", d, ok)
	}
	if _, ok := r.Descriptor("missing"); ok {
		t.Error("Descriptor(missing) should not be found")
	}
	if got := r.Descriptors(); len(got) != 2 {
		t.Errorf("Descriptors() returned %d", len(got))
	}
	if _, err := r.Create("missing", nil); CodeOf(err) != CodeConfigInvalid {
		t.Error("expected error creating unknown template")
	}

	ep, err := r.CreateFor(BackendConfig{Kind: KindObjectStore, Template: "a.one"})
	if err != nil || ep.ID() != "a.one" {
		t.Errorf("CreateFor = %v, %v", ep, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	r.Register("a.one", stubFactory("a.one"))
}

func TestMissingRequired(t *testing.T) {
	desc := &Descriptor{Fields: []*FieldDescriptor{
		{Key: "url", Required: true},
		{Key: "password", Aliases: []string{"secret"}, Required: true},
		{Key: "schema"},
	}}

	got := MissingRequired(desc, map[string]any{"url": "  "})
	if len(got) != 2 || got[0] != "password" || got[1] != "url" {
		t.Errorf("MissingRequired = %v", got)
	}
	if got := MissingRequired(desc, map[string]any{"url": "http://x", "secret": "s"}); len(got) != 0 {
		t.Errorf("alias should satisfy required field, got %v", got)
	}
	if MissingRequired(nil, nil) != nil {
		t.Error("nil descriptor should report nothing")
	}
}

func TestSensitiveKeys(t *testing.T) {
	desc := &Descriptor{Fields: []*FieldDescriptor{
		{Key: "password", Aliases: []string{"pass"}, Sensitive: true},
		{Key: "host"},
	}}
	keys := SensitiveKeys(desc)
	if !keys["password"] || !keys["pass"] || keys["host"] {
		t.Errorf("SensitiveKeys = %v", keys)
	}
}

func TestParams(t *testing.T) {
	params := map[string]any{
		"host":     "  ",
		"hostname": "db.local",
		"port":     "5432",
		"retries":  float64(3),
		"ssl":      "yes",
		"verify":   false,
	}
	if got := FirstString(params, "host", "hostname"); got != "db.local" {
		t.Errorf("FirstString = %q", got)
	}
	if got := FirstString(params, "retries"); got != "3" {
		t.Errorf("FirstString(float) = %q", got)
	}
	if got := FirstInt(params, 0, "port"); got != 5432 {
		t.Errorf("FirstInt(port) = %d", got)
	}
	if got := FirstInt(params, 0, "retries"); got != 3 {
		t.Errorf("FirstInt(retries) = %d", got)
	}
	if got := FirstInt(params, 7, "missing", "host"); got != 7 {
		t.Errorf("FirstInt default = %d", got)
	}
	if !FirstBool(params, false, "ssl") {
		t.Error("FirstBool(ssl) should be true")
	}
	if FirstBool(params, true, "verify") {
		t.Error("FirstBool(verify) should be false")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{WrapError(CodeAuthInvalid, false, errors.New("401")), CodeAuthInvalid},
		{fmt.Errorf("wrapped: %w", WrapError(CodeBucketNotFound, false, nil)), CodeBucketNotFound},
		{context.DeadlineExceeded, CodeTimeout},
		{&net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, CodeHostUnresolved},
		{errors.New("dial tcp 10.0.0.1:5432: connect: connection refused"), CodePortClosed},
		{errors.New("connect: no route to host"), CodeHostUnreachable},
		{errors.New("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestProbeResultConstructors(t *testing.T) {
	ok := Succeeded("fine", 0)
	if !ok.Success || ok.LatencyMs == nil || *ok.LatencyMs != 0 || ok.At.IsZero() {
		t.Errorf("Succeeded = %+v", ok)
	}
	bad := Failed(CodePortClosed, "closed", -1)
	if bad.Success || bad.Code != CodePortClosed || bad.LatencyMs != nil {
		t.Errorf("Failed = %+v", bad)
	}
}

func TestBackendConfigClone(t *testing.T) {
	cfg := BackendConfig{Kind: KindObjectStore, Params: map[string]any{"bucket": "a"}}
	clone := cfg.Clone()
	cfg.Params["bucket"] = "b"
	if clone.Params["bucket"] != "a" {
		t.Errorf("clone shares params: %v", clone.Params)
	}
}
