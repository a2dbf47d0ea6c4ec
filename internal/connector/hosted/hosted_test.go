package hosted_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nucleus/provision-core/internal/connector/hosted"
	"github.com/nucleus/provision-core/internal/endpoint"
)

func anonKey(t *testing.T) string {
	t.Helper()
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "anon",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("project-secret"))
	if err != nil {
		t.Fatalf("sign key: %v", err)
	}
	return key
}

func platformServer(t *testing.T, key string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != key || r.Header.Get("Authorization") != "Bearer "+key {
			http.Error(w, `{"message":"Invalid API key"}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"paths": {"/": {}, "/articles": {}, "/recipes": {}}}`))
	}))
}

func TestHosted_HandshakeAuthenticated(t *testing.T) {
	key := anonKey(t)
	srv := platformServer(t, key)
	defer srv.Close()

	ep, _ := hosted.New(map[string]any{"url": srv.URL, "anonKey": key})
	if res := ep.Handshake(context.Background()); !res.Success {
		t.Fatalf("expected handshake success: %s", res.Message)
	}

	bad, _ := hosted.New(map[string]any{"url": srv.URL, "anonKey": "wrong"})
	res := bad.Handshake(context.Background())
	if res.Success || res.Code != endpoint.CodeAuthInvalid {
		t.Fatalf("expected auth failure, got %+v", res)
	}
}

func TestHosted_ListTables(t *testing.T) {
	key := anonKey(t)
	srv := platformServer(t, key)
	defer srv.Close()

	ep, _ := hosted.New(map[string]any{"url": srv.URL + "/", "anonKey": key})
	tables, err := ep.ListTables(context.Background(), "")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if want := []string{"articles", "recipes"}; !reflect.DeepEqual(tables, want) {
		t.Fatalf("tables = %v, want %v", tables, want)
	}
}

func TestHosted_ValidateConfig(t *testing.T) {
	ep, _ := hosted.New(map[string]any{})
	res, _ := ep.ValidateConfig(context.Background(), map[string]any{"url": "https://abc.supabase.co", "anonKey": "nope"})
	if res.Valid || res.Code != endpoint.CodeAuthInvalid {
		t.Fatalf("expected invalid key, got %+v", res)
	}
	res, _ = ep.ValidateConfig(context.Background(), map[string]any{"url": "https://abc.supabase.co", "anonKey": anonKey(t)})
	if !res.Valid {
		t.Fatalf("expected valid config: %s", res.Message)
	}
}

func TestHosted_Target(t *testing.T) {
	ep, _ := hosted.New(map[string]any{"url": "https://abc.supabase.co"})
	target := ep.Target()
	if target.Host != "abc.supabase.co" || len(target.Ports) != 1 || target.Ports[0].Number != 443 {
		t.Fatalf("unexpected target %+v", target)
	}
}
