package authbridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hogflix/identsync/pkg/analytics"
	"github.com/hogflix/identsync/pkg/authbridge"
	"github.com/hogflix/identsync/pkg/groups"
	"github.com/hogflix/identsync/pkg/identity"
)

// fakeProfiles is an in-memory ProfileStore.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*authbridge.Profile
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, identifier string) (*authbridge.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[identifier]
	if !ok {
		return nil, authbridge.ErrProfileNotFound
	}
	return profile, nil
}

// fakeSessions is a settable SessionSource.
type fakeSessions struct {
	mu      sync.Mutex
	session *authbridge.Session
}

func (f *fakeSessions) CurrentSession(ctx context.Context) (*authbridge.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, authbridge.ErrNoSession
	}
	return f.session, nil
}

func (f *fakeSessions) set(session *authbridge.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
}

func maxSession() *authbridge.Session {
	return &authbridge.Session{
		Identifier: "max@hogflix.com",
		Metadata:   map[string]any{"plan": "premium"},
	}
}

func TestBridge_SignIn(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	bridge := authbridge.NewBridge(machine, rec, authbridge.WithSettleDelay(0))

	bridge.OnSessionChanged(context.Background(), maxSession())

	snap := machine.Snapshot()
	assert.True(t, snap.IsIdentified())
	assert.Equal(t, "max@hogflix.com", snap.ExternalID)

	identifies := rec.Identifies()
	require.Len(t, identifies, 1)
	assert.Equal(t, "max@hogflix.com", identifies[0].DistinctID)
	assert.Equal(t, "premium", identifies[0].Properties["plan"])
}

func TestBridge_DuplicateNotificationsIdentifyOnce(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	bridge := authbridge.NewBridge(machine, rec, authbridge.WithSettleDelay(0))
	ctx := context.Background()

	// The auth provider fires SIGNED_IN several times for one login.
	bridge.OnSessionChanged(ctx, maxSession())
	bridge.OnSessionChanged(ctx, maxSession())
	bridge.OnSessionChanged(ctx, maxSession())

	assert.Len(t, rec.Identifies(), 1)
	assert.True(t, machine.Snapshot().IsIdentified())
}

func TestBridge_SignOutResets(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()

	var purges int
	machine.OnReset(func() { purges++ })

	bridge := authbridge.NewBridge(machine, rec, authbridge.WithSettleDelay(0))
	ctx := context.Background()

	bridge.OnSessionChanged(ctx, maxSession())
	bridge.OnSessionChanged(ctx, nil)

	assert.Equal(t, identity.StateAnonymous, machine.Current())
	assert.Equal(t, 1, rec.Resets())
	assert.Equal(t, 1, purges)
}

func TestBridge_SignOutWhileAnonymousIsNoop(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	bridge := authbridge.NewBridge(machine, rec, authbridge.WithSettleDelay(0))

	bridge.OnSessionChanged(context.Background(), nil)

	assert.Zero(t, rec.Resets())
}

func TestBridge_IdentitySwitchResetsThenReidentifies(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()

	var purges int
	machine.OnReset(func() { purges++ })

	bridge := authbridge.NewBridge(machine, rec,
		authbridge.WithSettleDelay(5*time.Millisecond))
	ctx := context.Background()

	bridge.OnSessionChanged(ctx, maxSession())
	bridge.OnSessionChanged(ctx, &authbridge.Session{Identifier: "annika@hogflix.com"})

	snap := machine.Snapshot()
	assert.Equal(t, "annika@hogflix.com", snap.ExternalID)
	assert.True(t, snap.IsIdentified())

	// Reset happened between the two identifies, purging cached state.
	assert.Equal(t, 1, rec.Resets())
	assert.Equal(t, 1, purges)

	identifies := rec.Identifies()
	require.Len(t, identifies, 2)
	assert.Equal(t, "max@hogflix.com", identifies[0].DistinctID)
	assert.Equal(t, "annika@hogflix.com", identifies[1].DistinctID)
}

func TestBridge_IdentifyFailureRevertsToAnonymous(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	rec.FailIdentify(errors.New("provider down"))
	machine := identity.NewMachine()
	bridge := authbridge.NewBridge(machine, rec, authbridge.WithSettleDelay(0))
	ctx := context.Background()

	bridge.OnSessionChanged(ctx, maxSession())
	assert.Equal(t, identity.StateAnonymous, machine.Current())

	// A later auth event retries from scratch.
	rec.FailIdentify(nil)
	bridge.OnSessionChanged(ctx, maxSession())
	assert.True(t, machine.Snapshot().IsIdentified())
	assert.Len(t, rec.Identifies(), 1)
}

func TestBridge_OverlappingNotificationsDropped(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	bridge := authbridge.NewBridge(machine, rec,
		authbridge.WithSettleDelay(50*time.Millisecond))
	ctx := context.Background()

	// First call identifies max, then a switch to annika holds the guard
	// through its settling delay while a concurrent notification arrives.
	bridge.OnSessionChanged(ctx, maxSession())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bridge.OnSessionChanged(ctx, &authbridge.Session{Identifier: "annika@hogflix.com"})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond) // lands inside the settling delay
		bridge.OnSessionChanged(ctx, &authbridge.Session{Identifier: "lottie@hogflix.com"})
	}()
	wg.Wait()

	// The overlapping notification was dropped, not queued.
	assert.Len(t, rec.Identifies(), 2)
}

func TestBridge_EnrichmentFeedsCohortHints(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	coalescer := groups.NewCoalescer(rec, groups.WithDebounce(5*time.Millisecond))
	defer coalescer.Close()

	profiles := &fakeProfiles{profiles: map[string]*authbridge.Profile{
		"max@hogflix.com": {
			DisplayName: "Max",
			CohortHints: map[string]string{
				"user_type":    "Adult",
				"subscription": "Premium Plan",
			},
		},
	}}

	bridge := authbridge.NewBridge(machine, rec,
		authbridge.WithSettleDelay(0),
		authbridge.WithProfileStore(profiles),
		authbridge.WithCoalescer(coalescer),
	)

	bridge.OnSessionChanged(context.Background(), maxSession())
	bridge.Wait()

	require.Eventually(t, func() bool {
		return len(rec.Groups()) == 2
	}, time.Second, 10*time.Millisecond)

	byType := map[string]string{}
	for _, call := range rec.Groups() {
		byType[call.GroupType] = call.GroupKey
	}
	assert.Equal(t, "adult", byType["user_type"])
	assert.Equal(t, "premium-plan", byType["subscription"])
}

func TestBridge_MissingProfileIsNotAnError(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	coalescer := groups.NewCoalescer(rec, groups.WithDebounce(5*time.Millisecond))
	defer coalescer.Close()

	bridge := authbridge.NewBridge(machine, rec,
		authbridge.WithSettleDelay(0),
		authbridge.WithProfileStore(&fakeProfiles{profiles: map[string]*authbridge.Profile{}}),
		authbridge.WithCoalescer(coalescer),
	)

	bridge.OnSessionChanged(context.Background(), maxSession())
	bridge.Wait()

	assert.True(t, machine.Snapshot().IsIdentified())
	assert.Empty(t, rec.Groups())
}

func TestBridge_ReconcileNow(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	machine := identity.NewMachine()
	sessions := &fakeSessions{}

	bridge := authbridge.NewBridge(machine, rec,
		authbridge.WithSettleDelay(0),
		authbridge.WithSessionSource(sessions),
	)
	ctx := context.Background()

	// Cold start, signed out: nothing happens.
	bridge.ReconcileNow(ctx)
	assert.Equal(t, identity.StateAnonymous, machine.Current())
	assert.Empty(t, rec.Identifies())

	// Signed in: identifies, and repeated calls stay idempotent.
	sessions.set(maxSession())
	bridge.ReconcileNow(ctx)
	bridge.ReconcileNow(ctx)

	assert.True(t, machine.Snapshot().IsIdentified())
	assert.Len(t, rec.Identifies(), 1)
}
