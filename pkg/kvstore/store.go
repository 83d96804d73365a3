package kvstore

import (
	"context"
	"time"
)

// Store defines the interface for namespaced key/value persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Set stores a value under the given key. A non-zero ttl marks the entry
	// as expired after that duration; zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves the value for a key.
	// Returns ErrKeyNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key that starts with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// List returns all unexpired entries whose key starts with the given prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Close releases any resources held by the store.
	Close() error
}
