// Package flagcache provides a TTL-bound cache for feature flag values.
//
// The cache is the engine's single place where flag expiry is decided: an
// entry older than the configured TTL reads as absent, so no call site ever
// duplicates the expiry check. The in-memory map is authoritative; when a
// kvstore.Store is attached, entries are persisted best-effort for reload
// survival and loaded back on construction.
//
// Storage failures are never fatal. The first failed persistence is logged
// and the store is abandoned for the lifetime of the cache, which degrades
// to memory-only operation.
//
// Only the feature flag resolver writes to this cache; everything else reads.
package flagcache
