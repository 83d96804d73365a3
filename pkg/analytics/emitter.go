package analytics

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/hogflix/identsync/pkg/logging"
)

// libraryName is attached to every emitted event so provider-side dashboards
// can distinguish engine telemetry from other instrumentation.
const libraryName = "identsync-go"

// Emitter is a thin fire-and-forget wrapper over Provider.Capture.
// Track never blocks the caller and never returns an error; capture failures
// are logged and dropped.
type Emitter struct {
	provider  Provider
	logger    *slog.Logger
	timeout   time.Duration
	baseProps map[string]any
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithEmitterLogger sets the logger used for dropped capture calls.
func WithEmitterLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEmitterTimeout sets the per-capture timeout.
func WithEmitterTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBaseProperties adds static properties to every emitted event.
func WithBaseProperties(props map[string]any) EmitterOption {
	return func(e *Emitter) {
		if len(props) > 0 {
			e.baseProps = props
		}
	}
}

// NewEmitter creates an event emitter backed by the given provider.
func NewEmitter(provider Provider, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		provider: provider,
		logger:   slog.Default(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Track emits an analytics event asynchronously. The distinct ID is left
// empty so the provider can stamp its current visitor identifier.
func (e *Emitter) Track(name string, properties map[string]any) {
	if name == "" {
		return
	}

	props := make(map[string]any, len(e.baseProps)+len(properties)+1)
	maps.Copy(props, e.baseProps)
	maps.Copy(props, properties)
	props["$lib"] = libraryName

	event := Event{
		UUID:       uuid.NewString(),
		Name:       name,
		Properties: props,
		Timestamp:  time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if err := e.provider.Capture(ctx, event); err != nil {
			e.logger.Warn("dropped analytics event",
				slog.String("event", name),
				logging.Error(err))
		}
	}()
}

// TrackSync emits an event and waits for the capture call to finish.
// Used on shutdown paths where in-flight goroutines would be lost.
func (e *Emitter) TrackSync(ctx context.Context, name string, properties map[string]any) {
	if name == "" {
		return
	}

	props := make(map[string]any, len(e.baseProps)+len(properties)+1)
	maps.Copy(props, e.baseProps)
	maps.Copy(props, properties)
	props["$lib"] = libraryName

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.provider.Capture(ctx, Event{
		UUID:       uuid.NewString(),
		Name:       name,
		Properties: props,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("dropped analytics event",
			slog.String("event", name),
			logging.Error(err))
	}
}
