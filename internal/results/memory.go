package results

import (
	"context"
	"sync"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
)

type entry struct {
	result    endpoint.ProbeResult
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are dropped lazily.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// NewMemoryStore creates a store with the given display window.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// SetClock replaces the time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Put(ctx context.Context, kind endpoint.Kind, field string, res endpoint.ProbeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(kind, field)] = entry{result: res, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, kind endpoint.Kind, field string) (*endpoint.ProbeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Key(kind, field)
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	res := e.result
	return &res, nil
}

func (m *MemoryStore) Clear(ctx context.Context, kind endpoint.Kind, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(kind, field))
	return nil
}

var _ Store = (*MemoryStore)(nil)
