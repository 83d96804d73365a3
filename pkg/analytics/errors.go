package analytics

import "errors"

var (
	// ErrInvalidDistinctID indicates an identify call without a usable identifier.
	ErrInvalidDistinctID = errors.New("invalid distinct id")

	// ErrInvalidGroup indicates a group call with an empty type or key.
	ErrInvalidGroup = errors.New("invalid group type or key")

	// ErrProviderUnavailable indicates the remote provider rejected or failed the request.
	ErrProviderUnavailable = errors.New("analytics provider unavailable")
)
