package statestore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryBackend keeps state in process. It suits single-instance deployments and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func memoryKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

func (m *MemoryBackend) Get(_ context.Context, sessionID, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[memoryKey(sessionID, key)]
	m.mu.RUnlock()
	if !ok || entry.expired(m.now()) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, sessionID, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(sessionID, key)] = m.entry(value, ttl)
	return nil
}

func (m *MemoryBackend) SetNX(_ context.Context, sessionID, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey(sessionID, key)
	if existing, ok := m.entries[k]; ok && !existing.expired(m.now()) {
		return false, nil
	}
	m.entries[k] = m.entry(value, ttl)
	return true, nil
}

func (m *MemoryBackend) Del(_ context.Context, sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, memoryKey(sessionID, key))
	}
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (m *MemoryBackend) PurgeExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var removed int64
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}
