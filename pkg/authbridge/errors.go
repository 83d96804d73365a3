package authbridge

import "errors"

var (
	// ErrProfileNotFound indicates the profile store has no record for the identifier.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoSession indicates the session source has no current session.
	ErrNoSession = errors.New("no current session")
)
