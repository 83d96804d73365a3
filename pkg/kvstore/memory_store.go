package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store using in-memory storage.
// Expired entries are evicted lazily on read and periodically by a
// background cleanup loop when a positive cleanup interval is given.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ticker  *time.Ticker
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a new in-memory store.
// A cleanupInterval of zero disables the background cleanup loop.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

// Set stores a value under the given key.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Get retrieves the value for a key, evicting it if expired.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	entry, exists := m.entries[key]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, ErrStoreClosed
	}
	if !exists {
		return nil, ErrKeyNotFound
	}

	if entry.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrKeyNotFound
	}

	return append([]byte(nil), entry.value...), nil
}

// Delete removes a single key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.entries, key)
	return nil
}

// DeletePrefix removes every key that starts with the given prefix.
func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

// List returns all unexpired entries whose key starts with the given prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	now := time.Now()
	out := make(map[string][]byte)
	for key, entry := range m.entries {
		if !strings.HasPrefix(key, prefix) || entry.expired(now) {
			continue
		}
		out[key] = append([]byte(nil), entry.value...)
	}
	return out, nil
}

// Close stops the cleanup loop and rejects further operations.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.done)
	m.entries = make(map[string]memoryEntry)
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			m.deleteExpired()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) deleteExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
		}
	}
}
