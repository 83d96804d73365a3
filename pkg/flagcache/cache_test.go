package flagcache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hogflix/identsync/pkg/flagcache"
	"github.com/hogflix/identsync/pkg/kvstore"
)

// fakeClock lets tests move time across the TTL boundary.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	cache := flagcache.New()

	_, ok := cache.Get("kids-mode")
	assert.False(t, ok)

	cache.Set("kids-mode", true)
	value, ok := cache.Get("kids-mode")
	assert.True(t, ok)
	assert.True(t, value)

	cache.Set("kids-mode", false)
	value, ok = cache.Get("kids-mode")
	assert.True(t, ok)
	assert.False(t, value)
}

func TestCache_TTLBoundary(t *testing.T) {
	t.Parallel()

	const ttl = 5 * time.Minute
	clock := newFakeClock()
	cache := flagcache.New(
		flagcache.WithTTL(ttl),
		flagcache.WithTimeSource(clock.Now),
	)

	cache.Set("kids-mode", true)

	// T + TTL − ε: still cached.
	clock.Advance(ttl - time.Millisecond)
	value, ok := cache.Get("kids-mode")
	assert.True(t, ok)
	assert.True(t, value)

	// T + TTL + ε: absent.
	clock.Advance(2 * time.Millisecond)
	_, ok = cache.Get("kids-mode")
	assert.False(t, ok)
}

func TestCache_InvalidateAll(t *testing.T) {
	t.Parallel()

	cache := flagcache.New()
	cache.Set("kids-mode", true)
	cache.Set("new-carousel", false)
	require.Equal(t, 2, cache.Len())

	cache.InvalidateAll()

	assert.Zero(t, cache.Len())
	_, ok := cache.Get("kids-mode")
	assert.False(t, ok)
	_, ok = cache.Get("new-carousel")
	assert.False(t, ok)
}

func TestCache_PersistsAndWarms(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore(0)
	defer store.Close()

	cache := flagcache.New(flagcache.WithStore(store))
	cache.Set("kids-mode", true)
	cache.Set("new-carousel", false)

	// A second cache over the same store sees the persisted values.
	reloaded := flagcache.New(flagcache.WithStore(store))
	value, ok := reloaded.Get("kids-mode")
	assert.True(t, ok)
	assert.True(t, value)
	value, ok = reloaded.Get("new-carousel")
	assert.True(t, ok)
	assert.False(t, value)
}

func TestCache_WarmSkipsExpiredEntries(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore(0)
	defer store.Close()
	clock := newFakeClock()

	cache := flagcache.New(
		flagcache.WithStore(store),
		flagcache.WithTimeSource(clock.Now),
	)
	cache.Set("kids-mode", true)

	clock.Advance(flagcache.DefaultTTL + time.Second)

	reloaded := flagcache.New(
		flagcache.WithStore(store),
		flagcache.WithTimeSource(clock.Now),
	)
	_, ok := reloaded.Get("kids-mode")
	assert.False(t, ok)
}

func TestCache_InvalidateAllClearsStore(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore(0)
	defer store.Close()

	cache := flagcache.New(flagcache.WithStore(store))
	cache.Set("kids-mode", true)
	cache.InvalidateAll()

	reloaded := flagcache.New(flagcache.WithStore(store))
	_, ok := reloaded.Get("kids-mode")
	assert.False(t, ok)
}

// brokenStore fails every operation, simulating disabled or full storage.
type brokenStore struct{}

var errStorageDown = errors.New("storage down")

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errStorageDown }
func (brokenStore) Get(context.Context, string) ([]byte, error)             { return nil, errStorageDown }
func (brokenStore) Delete(context.Context, string) error                    { return errStorageDown }
func (brokenStore) DeletePrefix(context.Context, string) error              { return errStorageDown }
func (brokenStore) List(context.Context, string) (map[string][]byte, error) {
	return nil, errStorageDown
}
func (brokenStore) Close() error { return nil }

func TestCache_BrokenStoreDegradesToMemory(t *testing.T) {
	t.Parallel()

	cache := flagcache.New(flagcache.WithStore(brokenStore{}))

	// Writes and reads keep working without the store.
	cache.Set("kids-mode", true)
	value, ok := cache.Get("kids-mode")
	assert.True(t, ok)
	assert.True(t, value)

	cache.InvalidateAll()
	_, ok = cache.Get("kids-mode")
	assert.False(t, ok)
}
