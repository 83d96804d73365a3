package analytics

import (
	"context"
	"time"
)

// Event represents a single analytics event in provider wire format.
type Event struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Provider is the narrow interface the engine requires from an
// analytics/feature-flag provider SDK.
type Provider interface {
	// Identify associates a stable identifier with the current visitor's
	// past and future activity.
	Identify(ctx context.Context, distinctID string, properties map[string]any) error

	// Reset discards the provider's notion of the current visitor.
	// Called on logout and on detected identity switch.
	Reset(ctx context.Context) error

	// Group assigns the current visitor to a cohort of the given type.
	Group(ctx context.Context, groupType, groupKey string, properties map[string]any) error

	// Capture records a single analytics event.
	Capture(ctx context.Context, event Event) error

	// IsFeatureEnabled evaluates a feature flag for the current visitor
	// using the most recently loaded flag set.
	IsFeatureEnabled(ctx context.Context, flagName string) (bool, error)

	// ReloadFlags refreshes the provider's flag set for the current visitor.
	ReloadFlags(ctx context.Context) error
}
