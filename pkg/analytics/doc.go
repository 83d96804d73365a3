// Package analytics defines the narrow interface the engine uses to talk to
// an analytics/feature-flag provider, plus the supporting pieces around it:
// a fire-and-forget event Emitter, a PostHog-compatible HTTP Client, and an
// in-memory Recorder for tests.
//
// The engine never reaches a globally mounted SDK handle. Everything that
// needs the provider receives it as a Provider value, so the whole engine is
// testable without a network SDK:
//
//	rec := analytics.NewRecorder()
//	emitter := analytics.NewEmitter(rec, analytics.WithEmitterLogger(logger))
//	emitter.Track("movie_played", map[string]any{"title": "Top Gun"})
//
// Provider calls are expected to fail: network errors, provider outages and
// timeouts are all absorbed by the callers and expressed as fallback values,
// never surfaced to the product code.
package analytics
