package flags

import "errors"

var (
	// ErrRetriesExhausted indicates the refresh retry budget was spent
	// without a confirmed flag set. Logged, never returned to callers.
	ErrRetriesExhausted = errors.New("flag refresh retries exhausted")
)
