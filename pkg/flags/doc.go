// Package flags resolves feature flag values with graceful degradation.
//
// IsEnabled is synchronous and always answers immediately, in this order:
// the live value last confirmed by the provider for the current identity,
// else an unexpired flagcache value, else false. Asking for a flag also
// schedules a background refresh when none has completed yet.
//
// The refresh path is where the provider's eventual consistency is handled.
// Flag values are documented as unreliable before the visitor is identified,
// so a refresh only commits once it succeeds for an identified visitor.
// Until then it retries with exponential backoff, capped at MaxRetries
// attempts; after the cap the resolver falls back permanently to cached or
// default values until it is restarted or the identity changes.
//
// Confirmed post-identification values are written into the flag cache,
// which is owned exclusively by this package's resolver.
package flags
