// Package engine implements the labelsync reconciliation engine.
//
// The engine decides what happens to one incoming message: given the run's
// Mode, the message's post-override labels, its prior indexed record (if
// any) and, in restore mode, the snapshot entry for its id, Decide returns
// exactly one Action plus the labels to store.
//
// ARCHITECTURE:
//
// Pure Decision Function:
// Decide holds no state between calls. Everything that accumulates over a
// scan (counters, telemetry, index writes) lives in the syncer package,
// which drives one source's event stream through Decide. This keeps every
// rule testable in isolation and makes repeated runs idempotent: a second
// as-is run over an unchanged source decides NoOp for every message.
//
// Mode Resolution:
// The as-is / restore / discard choice is resolved once into a Mode value
// before scanning. Restore carries its snapshot; the other variants carry
// nothing. Decide switches on the variant, never on flags.
//
// Deletion:
// Messages a source stopped reporting arrive as delete events and bypass
// Decide entirely. The Delete action exists here so that callers can report
// every outcome with one type.
package engine
