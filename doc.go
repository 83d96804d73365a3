// Package identsync reconciles an authenticated session with an analytics
// and feature-flag provider's notion of who the current visitor is and which
// cohorts they belong to.
//
// The Engine is the application-facing surface. It guarantees exactly-once
// identification per logical user transition, TTL-bound caching of flag
// values, debounced last-write-wins cohort assignment, and a clean purge of
// all cached state when one user logs out and another logs in.
//
// Typical setup:
//
//	cfg, err := identsync.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	provider := analytics.NewClient("https://eu.posthog.example", apiKey)
//	engine := identsync.New(provider,
//		identsync.WithConfig(cfg),
//		identsync.WithSessionSource(sessions),
//		identsync.WithProfileStore(profiles),
//	)
//	defer engine.Close()
//
//	engine.ReconcileNow(ctx)
//
//	if engine.Flag("kids-mode") {
//		// render the kids catalog
//	}
//	engine.AssignGroup("subscription", "Premium Plan", nil)
//	engine.Track("movie_played", map[string]any{"title": "Top Gun"})
//
// Nothing the engine does ever surfaces an error to the product surface: a
// failed provider call means a flag reads as its default a little longer, or
// a cohort write is delayed. See the pkg subpackages for the individual
// building blocks.
package identsync
