// Package logging builds the structured slog logger shared by the sync
// engine and its components, and provides attribute helpers for the
// identifiers that recur across the codebase.
//
// The factory produces JSON output by default so engine logs land in
// aggregation systems ready to query; text output is a development opt-in:
//
//	log := logging.New(
//		logging.WithDevelopment("identsync"),
//	)
//	log.Info("visitor identified", logging.DistinctID("max@hogflix.com"))
//
// Context extractors inject request-scoped values into every record without
// threading them through call sites:
//
//	log := logging.New(
//		logging.WithContextValue("trace_id", traceIDKey),
//	)
package logging
