package identity

import (
	"log/slog"
	"sync"
)

// State is one of the three visitor lifecycle states.
type State int

const (
	// StateAnonymous is the initial state: no visitor is recognized.
	StateAnonymous State = iota
	// StateIdentifying means a remote identify call is in flight.
	StateIdentifying
	// StateIdentified means the visitor has a confirmed external identifier.
	StateIdentified
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateIdentifying:
		return "identifying"
	case StateIdentified:
		return "identified"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent read of the machine's state.
type Snapshot struct {
	State      State
	ExternalID string
}

// IsIdentified reports whether the visitor has a confirmed identity.
func (s Snapshot) IsIdentified() bool { return s.State == StateIdentified }

// IsIdentifying reports whether an identification is in flight.
func (s Snapshot) IsIdentifying() bool { return s.State == StateIdentifying }

// Machine is the visitor lifecycle state machine. All methods are safe for
// concurrent use; illegal transitions are dropped and logged, never applied.
type Machine struct {
	mu         sync.Mutex
	state      State
	externalID string
	resetHooks []func()
	logger     *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for dropped transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMachine creates a machine in the Anonymous state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:  StateAnonymous,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the current lifecycle state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the state and external identifier as one consistent read.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, ExternalID: m.externalID}
}

// BeginIdentify transitions Anonymous → Identifying. Returns false without
// side effects from any other state, which guarantees at most one in-flight
// identification regardless of how many triggers fire.
func (m *Machine) BeginIdentify(externalID string) bool {
	if externalID == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAnonymous {
		m.logger.Debug("identification trigger dropped",
			slog.String("state", m.state.String()),
			slog.String("external_id", externalID))
		return false
	}

	m.state = StateIdentifying
	return true
}

// CompleteIdentify transitions Identifying → Identified, recording the
// confirmed external identifier.
func (m *Machine) CompleteIdentify(externalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdentifying {
		m.logger.Debug("identify completion dropped",
			slog.String("state", m.state.String()))
		return false
	}

	m.state = StateIdentified
	m.externalID = externalID
	return true
}

// FailIdentify transitions Identifying → Anonymous after a failed remote
// identify call. The machine does not retry; a later auth event starts over.
func (m *Machine) FailIdentify() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdentifying {
		return false
	}

	m.state = StateAnonymous
	m.externalID = ""
	return true
}

// Reset forces the machine to Anonymous from any state and runs all reset
// hooks before returning. Holding the lock across the hooks ensures no
// BeginIdentify can observe a half-cleared cache.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateAnonymous
	m.externalID = ""

	for _, hook := range m.resetHooks {
		hook()
	}
}

// OnReset registers a hook to run synchronously during Reset.
func (m *Machine) OnReset(hook func()) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetHooks = append(m.resetHooks, hook)
}
