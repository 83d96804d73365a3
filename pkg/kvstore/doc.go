// Package kvstore provides namespaced, TTL-tagged key/value persistence for
// engine state that must survive a restart: cached feature flag values and
// last-known group assignments.
//
// Two implementations are provided: MemoryStore for tests and single-process
// deployments, and RedisStore for shared or durable state. All keys written
// through a store carry the caller's namespace prefix, which enables bulk
// invalidation via DeletePrefix when the visitor identity is reset.
//
// Usage:
//
//	store := kvstore.NewMemoryStore(time.Minute)
//	defer store.Close()
//
//	err := store.Set(ctx, "identsync:flag:new-ui", payload, 5*time.Minute)
//	data, err := store.Get(ctx, "identsync:flag:new-ui")
//	err = store.DeletePrefix(ctx, "identsync:")
//
// Storage failures are expected to be swallowed by callers: the engine treats
// a broken store as a permanent cache miss, never as a fatal condition.
package kvstore
