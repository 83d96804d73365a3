package analytics

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// IdentifyCall records the arguments of one Identify invocation.
type IdentifyCall struct {
	DistinctID string
	Properties map[string]any
}

// GroupCall records the arguments of one Group invocation.
type GroupCall struct {
	GroupType  string
	GroupKey   string
	Properties map[string]any
}

// Recorder is an in-memory Provider implementation that records every call.
// It is the test double for the whole engine and doubles as a no-op provider
// for applications that want the identity machinery without a real backend.
type Recorder struct {
	mu sync.Mutex

	identifies []IdentifyCall
	groups     []GroupCall
	captures   []Event
	resets     int
	flags      map[string]bool
	reloads    int

	identifyErr error
	groupErr    error
	captureErr  error
	flagErr     error
	flagErrLeft int
	reloadErr   error
}

// NewRecorder creates an empty recorder with no flags configured.
func NewRecorder() *Recorder {
	return &Recorder{flags: make(map[string]bool)}
}

// Identify records the call or returns the configured error.
func (r *Recorder) Identify(ctx context.Context, distinctID string, properties map[string]any) error {
	if distinctID == "" {
		return ErrInvalidDistinctID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identifyErr != nil {
		return r.identifyErr
	}

	r.identifies = append(r.identifies, IdentifyCall{
		DistinctID: distinctID,
		Properties: cloneProps(properties),
	})
	return nil
}

// Reset records the call.
func (r *Recorder) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return nil
}

// Group records the call or returns the configured error.
func (r *Recorder) Group(ctx context.Context, groupType, groupKey string, properties map[string]any) error {
	if groupType == "" || groupKey == "" {
		return ErrInvalidGroup
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.groupErr != nil {
		return r.groupErr
	}

	r.groups = append(r.groups, GroupCall{
		GroupType:  groupType,
		GroupKey:   groupKey,
		Properties: cloneProps(properties),
	})
	return nil
}

// Capture records the event or returns the configured error.
func (r *Recorder) Capture(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.captureErr != nil {
		return r.captureErr
	}
	r.captures = append(r.captures, event)
	return nil
}

// IsFeatureEnabled returns the configured flag value, or the configured
// error while error injections remain.
func (r *Recorder) IsFeatureEnabled(ctx context.Context, flagName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flagErr != nil && (r.flagErrLeft > 0 || r.flagErrLeft == -1) {
		if r.flagErrLeft > 0 {
			r.flagErrLeft--
		}
		return false, r.flagErr
	}
	return r.flags[flagName], nil
}

// ReloadFlags records the call or returns the configured error.
func (r *Recorder) ReloadFlags(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reloadErr != nil {
		return r.reloadErr
	}
	r.reloads++
	return nil
}

// SetFlag configures the value IsFeatureEnabled reports for a flag.
func (r *Recorder) SetFlag(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[name] = enabled
}

// FailIdentify makes subsequent Identify calls return err. Pass nil to clear.
func (r *Recorder) FailIdentify(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identifyErr = err
}

// FailGroup makes subsequent Group calls return err. Pass nil to clear.
func (r *Recorder) FailGroup(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupErr = err
}

// FailCapture makes subsequent Capture calls return err. Pass nil to clear.
func (r *Recorder) FailCapture(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captureErr = err
}

// FailFlagLookups makes the next n IsFeatureEnabled calls return err.
// Pass n = -1 to fail indefinitely, or err = nil to clear.
func (r *Recorder) FailFlagLookups(err error, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagErr = err
	r.flagErrLeft = n
}

// FailReload makes subsequent ReloadFlags calls return err. Pass nil to clear.
func (r *Recorder) FailReload(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadErr = err
}

// Identifies returns a copy of all recorded Identify calls.
func (r *Recorder) Identifies() []IdentifyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.identifies)
}

// Groups returns a copy of all recorded Group calls.
func (r *Recorder) Groups() []GroupCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.groups)
}

// Captures returns a copy of all recorded events.
func (r *Recorder) Captures() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.captures)
}

// Resets returns how many times Reset was called.
func (r *Recorder) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// Reloads returns how many times ReloadFlags was called.
func (r *Recorder) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	maps.Copy(out, props)
	return out
}
