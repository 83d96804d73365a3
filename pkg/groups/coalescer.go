package groups

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/hogflix/identsync/pkg/analytics"
	"github.com/hogflix/identsync/pkg/kvstore"
	"github.com/hogflix/identsync/pkg/logging"
)

// DefaultDebounce is the quiet period before a pending group write is sent.
const DefaultDebounce = 300 * time.Millisecond

// defaultNamespace prefixes persisted group snapshots.
const defaultNamespace = "identsync:group:"

// confirmationEvent is emitted after every successful group write.
const confirmationEvent = "group_assigned"

// pendingWrite is the single slot of coalesced state per group type.
// A newer Assign replaces the whole value, never mutates it.
type pendingWrite struct {
	timer       *time.Timer
	groupKey    string
	properties  map[string]any
	scheduledAt time.Time
}

// snapshot is the storage wire format for the last-known assignment.
type snapshot struct {
	GroupKey   string    `json:"group_key"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Coalescer debounces cohort writes per group type. Safe for concurrent use.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool

	provider  analytics.Provider
	emitter   *analytics.Emitter
	store     kvstore.Store
	namespace string
	debounce  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithTimeout sets the per-write timeout for remote group calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStore attaches a persistence backend for last-known assignments.
func WithStore(store kvstore.Store) Option {
	return func(c *Coalescer) {
		c.store = store
	}
}

// WithNamespace overrides the persisted key prefix.
func WithNamespace(prefix string) Option {
	return func(c *Coalescer) {
		if prefix != "" {
			c.namespace = prefix
		}
	}
}

// WithEmitter attaches an emitter for write confirmation events.
func WithEmitter(emitter *analytics.Emitter) Option {
	return func(c *Coalescer) {
		c.emitter = emitter
	}
}

// WithLogger sets the logger for dropped and failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coalescer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoalescer creates a coalescer writing through the given provider.
func NewCoalescer(provider analytics.Provider, opts ...Option) *Coalescer {
	c := &Coalescer{
		pending:   make(map[string]*pendingWrite),
		provider:  provider,
		namespace: defaultNamespace,
		debounce:  DefaultDebounce,
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assign schedules a cohort assignment for the visitor. An empty group type
// or raw label is a no-op: an empty cohort is never written. A call within
// the debounce window of a prior call to the same group type supersedes it.
func (c *Coalescer) Assign(groupType, rawLabel string, extraProperties map[string]any) {
	if groupType == "" || rawLabel == "" {
		return
	}

	groupKey := Slugify(rawLabel)
	if groupKey == "" {
		c.logger.Debug("group assignment dropped, label slugifies to empty",
			slog.String("group_type", groupType),
			slog.String("raw_label", rawLabel))
		return
	}

	properties := make(map[string]any, len(extraProperties)+1)
	maps.Copy(properties, extraProperties)
	// The provider indexes cohorts by this field; the caller never wins.
	properties["name"] = groupKey

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if prior, exists := c.pending[groupType]; exists {
		prior.timer.Stop()
	}

	write := &pendingWrite{
		groupKey:    groupKey,
		properties:  properties,
		scheduledAt: time.Now(),
	}
	write.timer = time.AfterFunc(c.debounce, func() {
		c.fire(groupType, write)
	})
	c.pending[groupType] = write
}

// Flush sends every pending write immediately. Used on shutdown so debounced
// assignments are not lost.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	writes := make(map[string]*pendingWrite, len(c.pending))
	for groupType, write := range c.pending {
		write.timer.Stop()
		writes[groupType] = write
	}
	c.mu.Unlock()

	for groupType, write := range writes {
		c.fire(groupType, write)
	}
}

// Forget cancels all pending writes and deletes the persisted snapshots.
// Called on identity reset so the next visitor inherits nothing.
func (c *Coalescer) Forget() {
	c.mu.Lock()
	for groupType, write := range c.pending {
		write.timer.Stop()
		delete(c.pending, groupType)
	}
	store := c.store
	c.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.DeletePrefix(context.Background(), c.namespace); err != nil {
		c.logger.Warn("failed to clear persisted group assignments",
			logging.Error(err))
	}
}

// LastKnown returns the persisted group key for a group type, if any.
func (c *Coalescer) LastKnown(groupType string) (string, bool) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	if store == nil || groupType == "" {
		return "", false
	}

	data, err := store.Get(context.Background(), c.namespace+groupType)
	if err != nil {
		return "", false
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", false
	}
	return snap.GroupKey, true
}

// Close cancels all pending writes without sending them.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for groupType, write := range c.pending {
		write.timer.Stop()
		delete(c.pending, groupType)
	}
}

// fire sends one coalesced write. The expect pointer guards against a stale
// timer racing a replacement Assign: only the write currently in the slot is
// ever sent.
func (c *Coalescer) fire(groupType string, expect *pendingWrite) {
	c.mu.Lock()
	current := c.pending[groupType]
	if current != expect {
		c.mu.Unlock()
		return
	}
	delete(c.pending, groupType)
	store := c.store
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.provider.Group(ctx, groupType, expect.groupKey, expect.properties); err != nil {
		// Snapshot deliberately not updated: the next successful write
		// reconciles from the provider's last accepted state.
		c.logger.Warn("group write failed",
			slog.String("group_type", groupType),
			slog.String("group_key", expect.groupKey),
			logging.Error(err))
		return
	}

	if c.emitter != nil {
		c.emitter.Track(confirmationEvent, map[string]any{
			"group_type": groupType,
			"group_key":  expect.groupKey,
		})
	}

	if store == nil {
		return
	}
	data, err := json.Marshal(snapshot{GroupKey: expect.groupKey, AssignedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := store.Set(ctx, c.namespace+groupType, data, 0); err != nil {
		c.logger.Warn("failed to persist group assignment",
			slog.String("group_type", groupType),
			logging.Error(err))
	}
}
