// Package identity tracks the visitor lifecycle as an explicit state machine:
//
//	Anonymous → Identifying → Identified → (logout / identity switch) → Anonymous
//
// The machine is the single source of truth for "who is the current visitor"
// and enforces the engine's exactly-once identification guarantee: while an
// identification is in flight, every further trigger is a structural no-op
// rather than a second network call.
//
// Reset hooks registered via OnReset run synchronously inside Reset, before
// any new identification can begin. The engine uses them to purge the flag
// cache and persisted group assignments so a newly identified visitor cannot
// inherit the previous visitor's cached state. Hooks must not call back into
// the machine.
package identity
