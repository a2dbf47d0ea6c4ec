package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/endpoint"
)

func TestClient_ReturnsResponseWithHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	client := uclhttp.NewClient(&uclhttp.ClientConfig{BaseURL: srv.URL})
	resp, err := client.Get(context.Background(), "/missing", nil, nil)
	if err == nil {
		t.Fatal("expected HTTPError for 404")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected response with 404, got %+v", resp)
	}
	if uclhttp.StatusOf(err) != http.StatusNotFound {
		t.Errorf("StatusOf = %d, want 404", uclhttp.StatusOf(err))
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := uclhttp.NewClient(&uclhttp.ClientConfig{BaseURL: srv.URL, MaxRetries: 2})
	resp, err := client.Get(context.Background(), "/", nil, nil)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if !resp.IsSuccess() || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected success after 2 calls, got status %d after %d calls", resp.StatusCode, calls)
	}
}

func TestClient_NegativeRetriesDisablesRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := uclhttp.NewClient(&uclhttp.ClientConfig{BaseURL: srv.URL, MaxRetries: -1})
	if _, err := client.Get(context.Background(), "/", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestClient_PostRetriesOnlyRateLimits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	client := uclhttp.NewClient(&uclhttp.ClientConfig{BaseURL: srv.URL, MaxRetries: 3})
	_, err := client.Post(context.Background(), "/articles", nil, nil, map[string]any{"name": "x"})
	if uclhttp.StatusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 to surface for POST, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 calls (429 retried, 503 not), got %d", n)
	}
}

func TestPlatformKeyAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "k" || r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := uclhttp.NewClient(&uclhttp.ClientConfig{BaseURL: srv.URL, Auth: uclhttp.PlatformKey{Key: "k"}})
	if _, err := client.Get(context.Background(), "/rest/v1/", nil, nil); err != nil {
		t.Fatalf("expected platform key headers to be accepted: %v", err)
	}
}

func TestStatusHandshake(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusMethodNotAllowed)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	base := uclhttp.NewBase("test", endpoint.KindRelationalGateway, &uclhttp.ClientConfig{BaseURL: srv.URL, MaxRetries: -1})
	alive := uclhttp.AliveStatuses{Any2xx: true, Codes: []int{404, 405}}

	res := base.StatusHandshake(context.Background(), &uclhttp.Request{Method: http.MethodGet, Path: "/"}, alive)
	if !res.Success || !strings.Contains(res.Message, "successful") {
		t.Fatalf("405 should be proof of life, got %+v", res)
	}

	status.Store(http.StatusUnauthorized)
	res = base.StatusHandshake(context.Background(), &uclhttp.Request{Method: http.MethodGet, Path: "/"}, alive)
	if res.Success || res.Code != endpoint.CodeAuthInvalid {
		t.Fatalf("401 should be rejected as auth failure, got %+v", res)
	}

	status.Store(http.StatusInternalServerError)
	res = base.StatusHandshake(context.Background(), &uclhttp.Request{Method: http.MethodGet, Path: "/"}, alive)
	if res.Success || res.Code != endpoint.CodeHandshakeRejected {
		t.Fatalf("500 should be rejected, got %+v", res)
	}
	if !strings.Contains(res.Message, "HTTP 500") {
		t.Errorf("expected raw status in message, got %q", res.Message)
	}
}

func TestStatusHandshake_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	base := uclhttp.NewBase("test", endpoint.KindObjectStore, &uclhttp.ClientConfig{BaseURL: url, MaxRetries: -1})
	res := base.StatusHandshake(context.Background(), &uclhttp.Request{Method: http.MethodHead, Path: "/"}, uclhttp.AliveStatuses{Any2xx: true})
	if res.Success {
		t.Fatal("expected failure against closed server")
	}
	if res.Code != endpoint.CodePortClosed {
		t.Errorf("code = %s, want %s", res.Code, endpoint.CodePortClosed)
	}
}
