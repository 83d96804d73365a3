package flagcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hogflix/identsync/pkg/kvstore"
	"github.com/hogflix/identsync/pkg/logging"
)

// DefaultTTL is how long a cached flag value stays valid.
const DefaultTTL = 5 * time.Minute

// defaultNamespace prefixes persisted cache keys for bulk invalidation.
const defaultNamespace = "identsync:flag:"

type entry struct {
	value    bool
	cachedAt time.Time
}

// persistedEntry is the storage wire format, TTL-tagged via cached_at.
type persistedEntry struct {
	Value    bool      `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is a TTL-bound flag value cache. Safe for concurrent use.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]entry
	ttl         time.Duration
	now         func() time.Time
	store       kvstore.Store
	namespace   string
	storeBroken bool
	logger      *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithStore attaches a persistence backend for reload survival.
func WithStore(store kvstore.Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithNamespace overrides the persisted key prefix.
func WithNamespace(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.namespace = prefix
		}
	}
}

// WithLogger sets the logger for swallowed storage errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeSource replaces the clock, for deterministic expiry tests.
func WithTimeSource(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache, warming it from the attached store when one is set.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]entry),
		ttl:       DefaultTTL,
		now:       time.Now,
		namespace: defaultNamespace,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.warm()
	return c
}

// Get returns the cached value for a flag. The second return is false when
// the flag is unknown or its entry has outlived the TTL.
func (c *Cache) Get(flagName string) (bool, bool) {
	c.mu.RLock()
	e, exists := c.entries[flagName]
	c.mu.RUnlock()

	if !exists {
		return false, false
	}

	if c.now().Sub(e.cachedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, flagName)
		c.mu.Unlock()
		return false, false
	}

	return e.value, true
}

// Set stores a freshly resolved flag value and persists it best-effort.
func (c *Cache) Set(flagName string, value bool) {
	if flagName == "" {
		return
	}

	cachedAt := c.now()

	c.mu.Lock()
	c.entries[flagName] = entry{value: value, cachedAt: cachedAt}
	store := c.usableStore()
	c.mu.Unlock()

	if store == nil {
		return
	}

	data, err := json.Marshal(persistedEntry{Value: value, CachedAt: cachedAt})
	if err != nil {
		return
	}
	if err := store.Set(context.Background(), c.namespace+flagName, data, c.ttl); err != nil {
		c.abandonStore(err)
	}
}

// InvalidateAll clears every entry, in memory and persisted.
// Called on identity reset so the next visitor starts from a cold cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	store := c.usableStore()
	c.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.DeletePrefix(context.Background(), c.namespace); err != nil {
		c.abandonStore(err)
	}
}

// Len returns the number of live (possibly expired) entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// warm loads unexpired persisted entries into memory.
func (c *Cache) warm() {
	if c.store == nil {
		return
	}

	persisted, err := c.store.List(context.Background(), c.namespace)
	if err != nil {
		c.abandonStore(err)
		return
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, data := range persisted {
		var pe persistedEntry
		if err := json.Unmarshal(data, &pe); err != nil {
			continue
		}
		if now.Sub(pe.CachedAt) > c.ttl {
			continue
		}
		name := strings.TrimPrefix(key, c.namespace)
		c.entries[name] = entry{value: pe.Value, cachedAt: pe.CachedAt}
	}
}

// usableStore must be called with the lock held.
func (c *Cache) usableStore() kvstore.Store {
	if c.store == nil || c.storeBroken {
		return nil
	}
	return c.store
}

// abandonStore logs the first storage failure and degrades to memory-only.
func (c *Cache) abandonStore(err error) {
	c.mu.Lock()
	alreadyBroken := c.storeBroken
	c.storeBroken = true
	c.mu.Unlock()

	if !alreadyBroken {
		c.logger.Warn("flag cache persistence disabled after storage error",
			logging.Error(err))
	}
}
