// Package groups assigns the current visitor to analytics cohorts with
// debounced, last-write-wins semantics.
//
// Rapid successive Assign calls for the same group type collapse into a
// single remote write: each call cancels and replaces the pending one, and
// only after the debounce window has been quiet does the write go out. Writes
// to different group types are independent and unordered relative to each
// other.
//
// Raw labels are normalized through Slugify before they leave the process,
// and the property set always carries a "name" field equal to the normalized
// key. The external provider indexes cohorts by that field, so the coalescer
// enforces it even against an explicit caller-supplied value.
//
// The last successfully written key per group type is persisted through a
// kvstore.Store so a restart does not require re-querying the provider.
// Failed writes are logged and do not touch the persisted snapshot.
package groups
