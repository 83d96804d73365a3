// Package authbridge connects the external auth/session provider to the
// identity machine and, through it, to the analytics provider.
//
// The bridge has a single entry point, OnSessionChanged, fed by the auth
// provider's change notifications, plus ReconcileNow for cold starts. It is
// where the engine's trickiest guarantees live:
//
//   - duplicate notifications for the same signed-in visitor are no-ops,
//   - a different identifier while identified forces a reset, waits out a
//     short settling delay for the provider's own reset to propagate, then
//     re-identifies,
//   - overlapping invocations are dropped by a check-in-progress guard, so
//     two racing notifications cannot both attempt identification.
//
// After a successful identification the bridge asynchronously enriches the
// visitor: profile attributes are fetched from the profile store and cohort
// hints are fed into the group coalescer.
//
// Nothing here surfaces errors to the caller. Failed identify calls revert
// the machine to anonymous and wait for the next auth event.
package authbridge
