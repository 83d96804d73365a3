package identsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hogflix/identsync/pkg/analytics"
	"github.com/hogflix/identsync/pkg/authbridge"
	"github.com/hogflix/identsync/pkg/flagcache"
	"github.com/hogflix/identsync/pkg/flags"
	"github.com/hogflix/identsync/pkg/groups"
	"github.com/hogflix/identsync/pkg/identity"
	"github.com/hogflix/identsync/pkg/kvstore"
	"github.com/hogflix/identsync/pkg/logging"
)

// IdentitySnapshot is the engine's answer to "who is the visitor right now".
type IdentitySnapshot struct {
	IsIdentified  bool
	IsIdentifying bool
}

// Engine wires the identity machine, flag resolver, group coalescer and auth
// bridge into one application-facing surface.
type Engine struct {
	config    Config
	logger    *slog.Logger
	store     kvstore.Store
	ownsStore bool

	machine   *identity.Machine
	cache     *flagcache.Cache
	emitter   *analytics.Emitter
	coalescer *groups.Coalescer
	resolver  *flags.Resolver
	bridge    *authbridge.Bridge

	// Collected by options, wired into the bridge during New.
	pendingSource   authbridge.SessionSource
	pendingProfiles authbridge.ProfileStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithLogger sets the logger shared by all engine components. Without one
// the engine builds a JSON logger via pkg/logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStore attaches a persistence backend for flag and group snapshots.
// Without one the engine uses an in-memory store it owns and closes.
func WithStore(store kvstore.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithSessionSource enables cold-start reconciliation via ReconcileNow.
func WithSessionSource(source authbridge.SessionSource) Option {
	return func(e *Engine) {
		e.pendingSource = source
	}
}

// WithProfileStore enables post-identification cohort enrichment.
func WithProfileStore(store authbridge.ProfileStore) Option {
	return func(e *Engine) {
		e.pendingProfiles = store
	}
}

// New creates a fully wired engine on top of the given provider.
func New(provider analytics.Provider, opts ...Option) *Engine {
	e := &Engine{
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.applyConfigDefaults()

	if e.logger == nil {
		e.logger = logging.New(logging.WithAttr(slog.String("service", "identsync")))
	}

	if e.store == nil {
		e.store = kvstore.NewMemoryStore(time.Minute)
		e.ownsStore = true
	}

	namespace := e.config.Namespace

	e.machine = identity.NewMachine(identity.WithLogger(e.logger))

	e.cache = flagcache.New(
		flagcache.WithTTL(e.config.CacheTTL),
		flagcache.WithStore(e.store),
		flagcache.WithNamespace(namespace+":flag:"),
		flagcache.WithLogger(e.logger),
	)

	e.emitter = analytics.NewEmitter(provider,
		analytics.WithEmitterLogger(e.logger),
		analytics.WithEmitterTimeout(e.config.RequestTimeout),
	)

	e.coalescer = groups.NewCoalescer(provider,
		groups.WithDebounce(e.config.DebounceInterval),
		groups.WithTimeout(e.config.RequestTimeout),
		groups.WithStore(e.store),
		groups.WithNamespace(namespace+":group:"),
		groups.WithEmitter(e.emitter),
		groups.WithLogger(e.logger),
	)

	e.resolver = flags.NewResolver(provider, e.cache, e.machine,
		flags.WithMaxRetries(e.config.MaxRetries),
		flags.WithBackoff(flags.ExponentialBackoff{
			InitialInterval: e.config.RetryInitialInterval,
			MaxInterval:     e.config.RetryMaxInterval,
			Multiplier:      2,
		}),
		flags.WithTimeout(e.config.RequestTimeout),
		flags.WithLogger(e.logger),
	)

	// Identity reset purges every trace of the previous visitor before a new
	// identification can begin.
	e.machine.OnReset(e.cache.InvalidateAll)
	e.machine.OnReset(e.coalescer.Forget)

	bridgeOpts := []authbridge.Option{
		authbridge.WithCoalescer(e.coalescer),
		authbridge.WithResolver(e.resolver),
		authbridge.WithEmitter(e.emitter),
		authbridge.WithSettleDelay(e.config.SettleDelay),
		authbridge.WithIdentifyTimeout(e.config.RequestTimeout),
		authbridge.WithLogger(e.logger),
	}
	if e.pendingSource != nil {
		bridgeOpts = append(bridgeOpts, authbridge.WithSessionSource(e.pendingSource))
	}
	if e.pendingProfiles != nil {
		bridgeOpts = append(bridgeOpts, authbridge.WithProfileStore(e.pendingProfiles))
	}
	e.bridge = authbridge.NewBridge(e.machine, provider, bridgeOpts...)

	return e
}

// applyConfigDefaults backfills zero values so a partially filled Config
// behaves like DefaultConfig for the unset knobs.
func (e *Engine) applyConfigDefaults() {
	defaults := DefaultConfig()
	if e.config.CacheTTL <= 0 {
		e.config.CacheTTL = defaults.CacheTTL
	}
	if e.config.DebounceInterval <= 0 {
		e.config.DebounceInterval = defaults.DebounceInterval
	}
	if e.config.SettleDelay < 0 {
		e.config.SettleDelay = defaults.SettleDelay
	}
	if e.config.RequestTimeout <= 0 {
		e.config.RequestTimeout = defaults.RequestTimeout
	}
	if e.config.MaxRetries < 0 {
		e.config.MaxRetries = defaults.MaxRetries
	}
	if e.config.RetryInitialInterval <= 0 {
		e.config.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if e.config.RetryMaxInterval <= 0 {
		e.config.RetryMaxInterval = defaults.RetryMaxInterval
	}
	if e.config.Namespace == "" {
		e.config.Namespace = defaults.Namespace
	}
}

// Identity reports the current visitor lifecycle state.
func (e *Engine) Identity() IdentitySnapshot {
	snap := e.machine.Snapshot()
	return IdentitySnapshot{
		IsIdentified:  snap.IsIdentified(),
		IsIdentifying: snap.IsIdentifying(),
	}
}

// Flag returns the best available value for a feature flag, immediately.
func (e *Engine) Flag(name string) bool {
	return e.resolver.IsEnabled(name)
}

// AssignGroup schedules a debounced cohort assignment for the visitor.
func (e *Engine) AssignGroup(groupType, label string, properties map[string]any) {
	e.coalescer.Assign(groupType, label, properties)
}

// Track emits a fire-and-forget analytics event.
func (e *Engine) Track(name string, properties map[string]any) {
	e.emitter.Track(name, properties)
}

// OnSessionChanged feeds an auth provider notification into the engine.
func (e *Engine) OnSessionChanged(ctx context.Context, session *authbridge.Session) {
	e.bridge.OnSessionChanged(ctx, session)
}

// ReconcileNow reconciles identity against the configured session source.
func (e *Engine) ReconcileNow(ctx context.Context) {
	e.bridge.ReconcileNow(ctx)
}

// Close flushes pending group writes and releases engine-owned resources.
func (e *Engine) Close() error {
	e.bridge.Wait()
	e.coalescer.Flush()
	e.coalescer.Close()

	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}
