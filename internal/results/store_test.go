package results_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/results"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock                   { return &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)} }
func ok(msg string) endpoint.ProbeResult { return endpoint.Succeeded(msg, 0) }
func fail(msg string) endpoint.ProbeResult {
	return endpoint.Failed(endpoint.CodeConfigInvalid, msg, -1)
}

func TestMemoryStore_ExpiresAfterWindow(t *testing.T) {
	c := newClock()
	s := results.NewMemoryStore(10 * time.Second)
	s.SetClock(c.now)
	ctx := context.Background()

	s.Put(ctx, endpoint.KindObjectStore, "bucket", ok("Valid bucket name"))
	c.advance(9 * time.Second)
	if got, _ := s.Get(ctx, endpoint.KindObjectStore, "bucket"); got == nil || got.Message != "Valid bucket name" {
		t.Fatalf("result should still be visible: %+v", got)
	}
	c.advance(time.Second)
	if got, _ := s.Get(ctx, endpoint.KindObjectStore, "bucket"); got != nil {
		t.Fatalf("result should have expired: %+v", got)
	}
}

func TestMemoryStore_NewerResultOutlivesOldExpiry(t *testing.T) {
	c := newClock()
	s := results.NewMemoryStore(10 * time.Second)
	s.SetClock(c.now)
	ctx := context.Background()

	s.Put(ctx, endpoint.KindRelationalGateway, "host", fail("Host is required"))
	c.advance(8 * time.Second)
	s.Put(ctx, endpoint.KindRelationalGateway, "host", ok("Valid hostname"))
	c.advance(5 * time.Second) // past the first result's expiry

	got, _ := s.Get(ctx, endpoint.KindRelationalGateway, "host")
	if got == nil || !got.Success {
		t.Fatalf("newer result cleared by older expiry: %+v", got)
	}
}

func TestMemoryStore_KeysAreScopedByKind(t *testing.T) {
	s := results.NewMemoryStore(0)
	ctx := context.Background()
	s.Put(ctx, endpoint.KindRelationalGateway, "port", ok("Valid port"))

	if got, _ := s.Get(ctx, endpoint.KindRelationalDirect, "port"); got != nil {
		t.Fatal("result leaked across kinds")
	}
	s.Clear(ctx, endpoint.KindRelationalGateway, "port")
	if got, _ := s.Get(ctx, endpoint.KindRelationalGateway, "port"); got != nil {
		t.Fatal("Clear did not remove result")
	}
	if results.Key(endpoint.KindObjectStore, "bucket") != "object-store.bucket" {
		t.Fatalf("key = %s", results.Key(endpoint.KindObjectStore, "bucket"))
	}
}

// Runs against a live Redis when PROVISION_TEST_REDIS_URL is set.
func TestRedisStore_Live(t *testing.T) {
	url := os.Getenv("PROVISION_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PROVISION_TEST_REDIS_URL not set")
	}
	client, err := results.Connect(url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s := results.NewRedisStore(client, time.Second)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, endpoint.KindObjectStore, "secretKey", ok("Valid secret key")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, endpoint.KindObjectStore, "secretKey")
	if err != nil || got == nil || got.Message != "Valid secret key" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	time.Sleep(1500 * time.Millisecond)
	if got, _ := s.Get(ctx, endpoint.KindObjectStore, "secretKey"); got != nil {
		t.Fatal("redis key did not expire")
	}
}
