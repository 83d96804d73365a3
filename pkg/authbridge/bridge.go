package authbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hogflix/identsync/pkg/analytics"
	"github.com/hogflix/identsync/pkg/flags"
	"github.com/hogflix/identsync/pkg/groups"
	"github.com/hogflix/identsync/pkg/identity"
	"github.com/hogflix/identsync/pkg/logging"
)

// DefaultSettleDelay is the pause between a forced reset and re-identify on
// an identity switch, giving the provider's own reset time to propagate.
const DefaultSettleDelay = 200 * time.Millisecond

// Bridge drives identity state from auth provider notifications.
type Bridge struct {
	machine  *identity.Machine
	provider analytics.Provider

	source    SessionSource
	profiles  ProfileStore
	coalescer *groups.Coalescer
	resolver  *flags.Resolver
	emitter   *analytics.Emitter

	settleDelay     time.Duration
	identifyTimeout time.Duration
	logger          *slog.Logger

	checkInProgress atomic.Bool
	enrichWG        sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSessionSource enables ReconcileNow cold-start reconciliation.
func WithSessionSource(source SessionSource) Option {
	return func(b *Bridge) {
		b.source = source
	}
}

// WithProfileStore enables post-identification profile enrichment.
func WithProfileStore(store ProfileStore) Option {
	return func(b *Bridge) {
		b.profiles = store
	}
}

// WithCoalescer routes enrichment cohort hints into the group coalescer.
func WithCoalescer(coalescer *groups.Coalescer) Option {
	return func(b *Bridge) {
		b.coalescer = coalescer
	}
}

// WithResolver lets the bridge kick a flag refresh after identification and
// invalidate live values on reset.
func WithResolver(resolver *flags.Resolver) Option {
	return func(b *Bridge) {
		b.resolver = resolver
	}
}

// WithEmitter attaches an emitter for lifecycle telemetry.
func WithEmitter(emitter *analytics.Emitter) Option {
	return func(b *Bridge) {
		b.emitter = emitter
	}
}

// WithSettleDelay overrides the reset-to-reidentify settling delay.
func WithSettleDelay(d time.Duration) Option {
	return func(b *Bridge) {
		if d >= 0 {
			b.settleDelay = d
		}
	}
}

// WithIdentifyTimeout sets the timeout enforced on remote identify calls.
func WithIdentifyTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.identifyTimeout = d
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge driving the given machine through the provider.
func NewBridge(machine *identity.Machine, provider analytics.Provider, opts ...Option) *Bridge {
	b := &Bridge{
		machine:         machine,
		provider:        provider,
		settleDelay:     DefaultSettleDelay,
		identifyTimeout: 10 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnSessionChanged reconciles identity state with a session notification.
// A nil session or empty identifier means signed out. Overlapping calls are
// dropped: only one reconciliation runs at a time.
func (b *Bridge) OnSessionChanged(ctx context.Context, session *Session) {
	if !b.checkInProgress.CompareAndSwap(false, true) {
		b.logger.Debug("session check already in progress, dropping notification")
		return
	}
	defer b.checkInProgress.Store(false)

	if session == nil || session.Identifier == "" {
		b.signOut(ctx)
		return
	}

	snap := b.machine.Snapshot()
	switch {
	case snap.IsIdentified() && snap.ExternalID == session.Identifier:
		// The auth provider is known to fire several notifications per login.
		b.logger.Debug("duplicate session notification ignored",
			slog.String("external_id", session.Identifier))
		return

	case snap.IsIdentified():
		b.logger.Info("identity switch detected",
			slog.String("previous", snap.ExternalID),
			slog.String("next", session.Identifier))
		b.reset(ctx)
		// Let the provider's reset propagate before the conflicting identify.
		time.Sleep(b.settleDelay)
		b.identify(ctx, session)

	default:
		b.identify(ctx, session)
	}
}

// ReconcileNow reconciles against the session source's current session.
// Safe to call repeatedly; used on cold start.
func (b *Bridge) ReconcileNow(ctx context.Context) {
	if b.source == nil {
		b.logger.Debug("no session source configured, skipping reconciliation")
		return
	}

	session, err := b.source.CurrentSession(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		b.logger.Warn("failed to read current session", logging.Error(err))
		return
	}
	b.OnSessionChanged(ctx, session)
}

// Wait blocks until in-flight enrichment goroutines finish.
func (b *Bridge) Wait() {
	b.enrichWG.Wait()
}

func (b *Bridge) signOut(ctx context.Context) {
	if b.machine.Current() == identity.StateAnonymous {
		return
	}
	b.reset(ctx)
}

// reset clears provider and engine state. Machine reset hooks purge the flag
// cache and persisted group assignments synchronously.
func (b *Bridge) reset(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, b.identifyTimeout)
	defer cancel()

	if err := b.provider.Reset(rctx); err != nil {
		b.logger.Warn("provider reset failed", logging.Error(err))
	}
	if b.resolver != nil {
		b.resolver.Invalidate()
	}
	b.machine.Reset()
}

func (b *Bridge) identify(ctx context.Context, session *Session) {
	if !b.machine.BeginIdentify(session.Identifier) {
		b.logger.Debug("identification already in flight, dropping trigger",
			slog.String("external_id", session.Identifier))
		return
	}

	ictx, cancel := context.WithTimeout(ctx, b.identifyTimeout)
	defer cancel()

	if err := b.provider.Identify(ictx, session.Identifier, session.Metadata); err != nil {
		// No retry loop here: the next auth event starts from scratch.
		b.machine.FailIdentify()
		b.logger.Warn("identify call failed",
			slog.String("external_id", session.Identifier),
			logging.Error(err))
		return
	}

	b.machine.CompleteIdentify(session.Identifier)

	if b.resolver != nil {
		// Flag values are reliable now; refresh with a fresh budget.
		b.resolver.Restart()
		b.resolver.Refresh()
	}
	if b.emitter != nil {
		b.emitter.Track("visitor_identified", nil)
	}

	b.enrichWG.Add(1)
	go b.enrich(session.Identifier)
}

// enrich fetches auxiliary profile attributes and feeds cohort hints into
// the coalescer. Runs detached from the triggering notification.
func (b *Bridge) enrich(identifier string) {
	defer b.enrichWG.Done()

	if b.profiles == nil || b.coalescer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.identifyTimeout)
	defer cancel()

	profile, err := b.profiles.FetchProfile(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			b.logger.Debug("no profile for identified visitor",
				slog.String("external_id", identifier))
		} else {
			b.logger.Warn("profile fetch failed",
				slog.String("external_id", identifier),
				logging.Error(err))
		}
		return
	}

	// Stale enrichment guard: the visitor may have switched while we were
	// fetching; their cohorts must not leak onto the new identity.
	snap := b.machine.Snapshot()
	if !snap.IsIdentified() || snap.ExternalID != identifier {
		return
	}

	for groupType, label := range profile.CohortHints {
		b.coalescer.Assign(groupType, label, nil)
	}
}
