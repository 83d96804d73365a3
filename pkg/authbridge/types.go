package authbridge

import (
	"context"
	"time"
)

// Session is the narrow view of an authenticated session the engine needs.
type Session struct {
	// Identifier is the stable external identifier of the visitor, e.g. an
	// email address.
	Identifier string
	// Metadata carries provider-specific session attributes, forwarded as
	// identify properties.
	Metadata map[string]any
}

// SessionSource exposes the auth provider's current session for cold-start
// reconciliation. Change notifications arrive via Bridge.OnSessionChanged.
type SessionSource interface {
	// CurrentSession returns the active session, or ErrNoSession when the
	// visitor is signed out.
	CurrentSession(ctx context.Context) (*Session, error)
}

// Profile holds auxiliary visitor attributes from the external profile store.
type Profile struct {
	DisplayName string
	// CohortHints maps group types to raw cohort labels, e.g.
	// "user_type" → "Kids", "subscription" → "Premium Plan".
	CohortHints map[string]string
	CreatedAt   time.Time
}

// ProfileStore fetches auxiliary profile attributes after identification.
type ProfileStore interface {
	// FetchProfile returns the profile for an identifier, or
	// ErrProfileNotFound when none exists.
	FetchProfile(ctx context.Context, identifier string) (*Profile, error)
}
