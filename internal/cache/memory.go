package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local cache with the same JSON semantics as RedisStore.
// It is used when no Redis URL is configured. Expired entries are never returned.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clockwork.Clock
}

// NewMemoryStore creates an empty store. A nil clock means wall-clock time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get decodes the live value at key into dst. Returns false, nil on a miss.
func (m *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(e.value, dst); err != nil {
		return false, fmt.Errorf("unmarshaling cached value %s: %w", key, err)
	}
	return true, nil
}

// Set stores value at key for ttl, overwriting any previous entry.
func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value for %s: %w", key, err)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: b, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}
