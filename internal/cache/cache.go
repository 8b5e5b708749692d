// Package cache stores composed dashboard views so repeated reads skip the store fan-out.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/steelburgerz/veloiq/internal/observability"
)

// Cache holds JSON-encoded views. Invalidate drops every cached view at once because any
// snapshot change can affect any aggregate.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, reason string) error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) {
	observability.RecordCacheLookup(false)
	return false, nil
}
func (Noop) Set(context.Context, string, any) error   { return nil }
func (Noop) Invalidate(context.Context, string) error { return nil }

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is a process-local cache for single-instance deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory constructs a Memory cache. A non-positive ttl keeps entries until invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

// Get decodes the cached value for key into dst.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if ok && !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		ok = false
	}
	observability.RecordCacheLookup(ok)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(entry.payload, dst)
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Invalidate drops all entries.
func (m *Memory) Invalidate(context.Context, string) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
