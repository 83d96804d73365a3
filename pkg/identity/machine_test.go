package identity_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hogflix/identsync/pkg/identity"
)

func TestMachine_InitialState(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()
	assert.Equal(t, identity.StateAnonymous, m.Current())
	assert.Empty(t, m.Snapshot().ExternalID)
}

func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()

	require.True(t, m.BeginIdentify("max@hogflix.com"))
	assert.Equal(t, identity.StateIdentifying, m.Current())
	assert.True(t, m.Snapshot().IsIdentifying())

	require.True(t, m.CompleteIdentify("max@hogflix.com"))
	snap := m.Snapshot()
	assert.True(t, snap.IsIdentified())
	assert.Equal(t, "max@hogflix.com", snap.ExternalID)
}

func TestMachine_BeginIdentifyGuards(t *testing.T) {
	t.Parallel()

	t.Run("empty identifier", func(t *testing.T) {
		t.Parallel()
		m := identity.NewMachine()
		assert.False(t, m.BeginIdentify(""))
		assert.Equal(t, identity.StateAnonymous, m.Current())
	})

	t.Run("while identifying", func(t *testing.T) {
		t.Parallel()
		m := identity.NewMachine()
		require.True(t, m.BeginIdentify("max@hogflix.com"))
		assert.False(t, m.BeginIdentify("max@hogflix.com"))
		assert.Equal(t, identity.StateIdentifying, m.Current())
	})

	t.Run("while identified", func(t *testing.T) {
		t.Parallel()
		m := identity.NewMachine()
		require.True(t, m.BeginIdentify("max@hogflix.com"))
		require.True(t, m.CompleteIdentify("max@hogflix.com"))
		assert.False(t, m.BeginIdentify("other@hogflix.com"))
		assert.Equal(t, identity.StateIdentified, m.Current())
	})
}

func TestMachine_CompleteRequiresIdentifying(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()
	assert.False(t, m.CompleteIdentify("max@hogflix.com"))
	assert.Equal(t, identity.StateAnonymous, m.Current())
}

func TestMachine_FailIdentify(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()
	require.True(t, m.BeginIdentify("max@hogflix.com"))
	require.True(t, m.FailIdentify())

	snap := m.Snapshot()
	assert.Equal(t, identity.StateAnonymous, snap.State)
	assert.Empty(t, snap.ExternalID)

	// A later trigger can start from scratch.
	assert.True(t, m.BeginIdentify("max@hogflix.com"))
}

func TestMachine_ResetRunsHooksSynchronously(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()
	require.True(t, m.BeginIdentify("max@hogflix.com"))
	require.True(t, m.CompleteIdentify("max@hogflix.com"))

	var purged []string
	m.OnReset(func() { purged = append(purged, "flags") })
	m.OnReset(func() { purged = append(purged, "groups") })

	m.Reset()

	assert.Equal(t, []string{"flags", "groups"}, purged)
	snap := m.Snapshot()
	assert.Equal(t, identity.StateAnonymous, snap.State)
	assert.Empty(t, snap.ExternalID)
}

func TestMachine_ExactlyOneConcurrentIdentification(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()

	var began atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.BeginIdentify("max@hogflix.com") {
				began.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), began.Load())
	assert.Equal(t, identity.StateIdentifying, m.Current())
}

func TestMachine_CyclesForProcessLifetime(t *testing.T) {
	t.Parallel()

	m := identity.NewMachine()

	for i := 0; i < 3; i++ {
		require.True(t, m.BeginIdentify("max@hogflix.com"))
		require.True(t, m.CompleteIdentify("max@hogflix.com"))
		m.Reset()
	}
	assert.Equal(t, identity.StateAnonymous, m.Current())
}
