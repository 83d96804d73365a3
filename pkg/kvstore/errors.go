package kvstore

import "errors"

var (
	// ErrKeyNotFound indicates the requested key does not exist or has expired.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey indicates an empty or otherwise unusable key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrStoreClosed indicates the store has been closed and cannot serve requests.
	ErrStoreClosed = errors.New("store is closed")

	// ErrFailedToParseConnString indicates the Redis connection URL is malformed.
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")

	// ErrRedisNotReady indicates the Redis server did not respond to ping within the retry budget.
	ErrRedisNotReady = errors.New("redis server is not ready")
)
