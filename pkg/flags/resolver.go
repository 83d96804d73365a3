package flags

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hogflix/identsync/pkg/analytics"
	"github.com/hogflix/identsync/pkg/flagcache"
	"github.com/hogflix/identsync/pkg/identity"
	"github.com/hogflix/identsync/pkg/logging"
)

// DefaultMaxRetries is the refresh retry budget after the initial attempt.
const DefaultMaxRetries = 2

// Resolver answers flag queries synchronously and refreshes values from the
// provider in the background. Safe for concurrent use.
type Resolver struct {
	provider analytics.Provider
	cache    *flagcache.Cache
	identity *identity.Machine

	maxRetries int
	backoff    BackoffStrategy
	timeout    time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	live       map[string]bool
	tracked    map[string]struct{}
	refreshing bool
	exhausted  bool
	generation uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoff replaces the retry backoff strategy.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(r *Resolver) {
		if strategy != nil {
			r.backoff = strategy
		}
	}
}

// WithTimeout sets the per-refresh timeout for provider calls.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver reading identity state from the machine and
// writing confirmed values into the cache.
func NewResolver(provider analytics.Provider, cache *flagcache.Cache, machine *identity.Machine, opts ...Option) *Resolver {
	r := &Resolver{
		provider:   provider,
		cache:      cache,
		identity:   machine,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff(),
		timeout:    10 * time.Second,
		logger:     slog.Default(),
		live:       make(map[string]bool),
		tracked:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsEnabled returns the best available value for a flag without blocking:
// live provider value, else unexpired cache value, else false. The flag is
// registered for future refreshes, and a background refresh is scheduled if
// none has delivered a value yet.
func (r *Resolver) IsEnabled(flagName string) bool {
	if flagName == "" {
		return false
	}

	r.mu.Lock()
	r.tracked[flagName] = struct{}{}
	value, live := r.live[flagName]
	if !live && !r.refreshing && !r.exhausted {
		r.refreshing = true
		go r.refreshLoop(r.generation)
	}
	r.mu.Unlock()

	if live {
		return value
	}
	if cached, ok := r.cache.Get(flagName); ok {
		return cached
	}
	return false
}

// Refresh schedules a background refresh, typically right after a successful
// identification when provider values become reliable.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exhausted = false
	if r.refreshing {
		return
	}
	r.refreshing = true
	go r.refreshLoop(r.generation)
}

// Invalidate drops all live values and aborts in-flight refreshes.
// Wired as an identity reset hook: the flag cache itself is cleared
// separately by its own hook.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.live = make(map[string]bool)
	r.refreshing = false
	r.exhausted = false
}

// Restart clears the exhausted latch, giving a remounted consumer a fresh
// retry budget.
func (r *Resolver) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted = false
}

// refreshLoop attempts to confirm the tracked flag set. It only commits when
// the provider call succeeds while the visitor is identified; anything else
// is retried with backoff until the budget is spent.
func (r *Resolver) refreshLoop(generation uint64) {
	for attempt := 0; ; attempt++ {
		if r.stale(generation) {
			return
		}

		err := r.refreshOnce()
		identified := r.identity.Snapshot().IsIdentified()

		if err == nil && identified {
			r.mu.Lock()
			if generation == r.generation {
				r.refreshing = false
			}
			r.mu.Unlock()
			return
		}

		if err != nil {
			r.logger.Warn("flag refresh attempt failed",
				slog.Int("attempt", attempt+1),
				logging.Error(err))
		}

		if attempt >= r.maxRetries {
			r.mu.Lock()
			if generation == r.generation {
				r.refreshing = false
				r.exhausted = true
			}
			r.mu.Unlock()
			r.logger.Warn("flag resolution degraded to cached values",
				logging.Error(ErrRetriesExhausted))
			return
		}

		time.Sleep(r.backoff.NextInterval(attempt + 1))
	}
}

// refreshOnce reloads the provider flag set and re-evaluates every tracked
// flag, committing values only for an identified visitor.
func (r *Resolver) refreshOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.provider.ReloadFlags(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	names := make([]string, 0, len(r.tracked))
	for name := range r.tracked {
		names = append(names, name)
	}
	generation := r.generation
	r.mu.Unlock()

	for _, name := range names {
		value, err := r.provider.IsFeatureEnabled(ctx, name)
		if err != nil {
			return err
		}

		if !r.identity.Snapshot().IsIdentified() {
			// Pre-identification values are unreliable; never commit them.
			continue
		}

		r.mu.Lock()
		if generation != r.generation {
			r.mu.Unlock()
			return nil
		}
		r.live[name] = value
		r.mu.Unlock()

		r.cache.Set(name, value)
	}
	return nil
}

func (r *Resolver) stale(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return generation != r.generation
}
